package smc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/smcgo/smc/shared/api"
	"github.com/smcgo/smc/shared/logger"
	"github.com/smcgo/smc/shared/revert"
)

// TypeEngine is the search context of all engine types.
const TypeEngine = "engine_clusters"

// DefaultBlacklistDuration is how long blacklist entries last, in seconds.
const DefaultBlacklistDuration = 3600

// Engine is a firewall, IPS or layer 2 engine.
type Engine struct {
	*Element
}

// GetEngine resolves an engine by name.
func GetEngine(ctx context.Context, conn Connection, name string) (*Engine, error) {
	e, err := GetElement(ctx, conn, TypeEngine, name)
	if err != nil {
		return nil, err
	}

	return &Engine{Element: e}, nil
}

// EngineFromHref wraps the engine at href without fetching anything.
func EngineFromHref(conn Connection, href string) *Engine {
	return &Engine{Element: ElementFromHref(conn, href, TypeEngine)}
}

// Version returns the software version of the engine.
func (e *Engine) Version(ctx context.Context) (string, error) {
	return e.StringAttribute(ctx, "engine_version")
}

// entries lists the collection behind a relation.
func (e *Engine) entries(ctx context.Context, rel string) ([]api.ElementEntry, error) {
	href, err := e.feature(ctx, rel)
	if err != nil {
		return nil, err
	}

	return NewCollection(e.conn, href, rel).Entries(ctx)
}

// Nodes returns the nodes of the engine.
func (e *Engine) Nodes(ctx context.Context) ([]*Node, error) {
	entries, err := e.entries(ctx, "nodes")
	if err != nil {
		return nil, err
	}

	nodes := make([]*Node, 0, len(entries))
	for _, entry := range entries {
		nodes = append(nodes, &Node{SubElement: subElementFromEntry(e.conn, entry)})
	}

	return nodes, nil
}

// InternalGateway returns the VPN gateway of the engine.
func (e *Engine) InternalGateway(ctx context.Context) (*InternalGateway, error) {
	entries, err := e.entries(ctx, "internal_gateway")
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, &api.UnsupportedFeatureError{Feature: "internal_gateway", Type: e.Type()}
	}

	return &InternalGateway{SubElement: subElementFromEntry(e.conn, entries[0])}, nil
}

// VirtualResources returns the virtual resources of a master engine.
func (e *Engine) VirtualResources(ctx context.Context) (*VirtualResources, error) {
	href, err := e.feature(ctx, "virtual_resources")
	if err != nil {
		return nil, err
	}

	return &VirtualResources{Collection: NewCollection(e.conn, href, "virtual_resource")}, nil
}

// Interfaces lists all the interfaces of the engine.
func (e *Engine) Interfaces(ctx context.Context) ([]api.ElementEntry, error) {
	return e.entries(ctx, "interfaces")
}

// PhysicalInterfaces returns the physical interfaces collection.
func (e *Engine) PhysicalInterfaces(ctx context.Context) (*Collection, error) {
	href, err := e.feature(ctx, "physical_interface")
	if err != nil {
		return nil, err
	}

	return NewCollection(e.conn, href, "physical_interface"), nil
}

// TunnelInterfaces returns the tunnel interfaces collection.
func (e *Engine) TunnelInterfaces(ctx context.Context) (*Collection, error) {
	href, err := e.feature(ctx, "tunnel_interface")
	if err != nil {
		return nil, err
	}

	return NewCollection(e.conn, href, "tunnel_interface"), nil
}

// Snapshots lists the policy snapshots of the engine.
func (e *Engine) Snapshots(ctx context.Context) ([]api.ElementEntry, error) {
	return e.entries(ctx, "snapshots")
}

// document fetches the raw document behind a relation.
func (e *Engine) document(ctx context.Context, rel string) (map[string]any, error) {
	href, err := e.feature(ctx, rel)
	if err != nil {
		return nil, err
	}

	resp, err := get(ctx, e.conn, href, nil)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{}
	err = resp.Decode(&doc)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// Routing returns the routing tree of the engine.
func (e *Engine) Routing(ctx context.Context) (map[string]any, error) {
	return e.document(ctx, "routing")
}

// Antispoofing returns the antispoofing tree of the engine.
func (e *Engine) Antispoofing(ctx context.Context) (map[string]any, error) {
	return e.document(ctx, "antispoofing")
}

// command sends a request to a relation of the engine.
func (e *Engine) command(ctx context.Context, method string, rel string, params url.Values, body any) (*Result, error) {
	href, err := e.feature(ctx, rel)
	if err != nil {
		return nil, err
	}

	resp, err := e.conn.Fetch(ctx, &Request{Method: method, Href: href, Params: params, Body: body})
	if err != nil {
		return nil, fmt.Errorf("Engine command %q failed: %w", rel, err)
	}

	return resp, nil
}

// Refresh re-installs the current policy, returning the refresh task.
func (e *Engine) Refresh(ctx context.Context) (*Task, error) {
	resp, err := e.command(ctx, http.MethodPost, "refresh", nil, nil)
	if err != nil {
		return nil, err
	}

	return StartTask(e.conn, resp)
}

// Upload installs a policy, by name, returning the upload task. An empty
// policy uploads the current one.
func (e *Engine) Upload(ctx context.Context, policy string) (*Task, error) {
	params := url.Values{}
	if policy != "" {
		params.Set("filter", policy)
	}

	resp, err := e.command(ctx, http.MethodPost, "upload", params, nil)
	if err != nil {
		return nil, err
	}

	return StartTask(e.conn, resp)
}

// GenerateSnapshot writes a snapshot of the installed policy into w.
func (e *Engine) GenerateSnapshot(ctx context.Context, w io.Writer) error {
	resp, err := e.command(ctx, http.MethodGet, "generate_snapshot", nil, nil)
	if err != nil {
		return err
	}

	content := resp.Content
	if content == nil {
		content = resp.JSON
	}

	_, err = w.Write(content)
	return err
}

// Blacklist adds a blacklist entry on the engine. A rule applying the
// blacklist is required for it to take effect.
func (e *Engine) Blacklist(ctx context.Context, src string, dst string, duration int) error {
	_, err := e.command(ctx, http.MethodPost, "blacklist", nil, api.BlacklistEntry(src, dst, duration))
	return err
}

// BlacklistFlush removes all the blacklist entries of the engine.
func (e *Engine) BlacklistFlush(ctx context.Context) error {
	_, err := e.command(ctx, http.MethodDelete, "flush_blacklist", nil, nil)
	return err
}

// AddRoute adds a static route. The gateway must sit on an existing interface network.
func (e *Engine) AddRoute(ctx context.Context, gateway string, network string) error {
	params := url.Values{}
	params.Set("gateway", gateway)
	params.Set("network", network)

	_, err := e.command(ctx, http.MethodPost, "add_route", params, nil)
	return err
}

// Rename renames the engine along with its internal gateway and nodes.
// Already renamed parts are restored if a later step fails.
func (e *Engine) Rename(ctx context.Context, name string) error {
	err := e.Load(ctx)
	if err != nil {
		return err
	}

	oldName := e.Name()

	reverter := revert.New()
	defer reverter.Fail()

	onRevertErr := func(err error) {
		logger.Error("Failed restoring name after a failed rename", logger.Ctx{"engine": oldName, "err": err})
	}

	err = e.ModifyAttribute(ctx, map[string]any{"name": name})
	if err != nil {
		return err
	}

	reverter.AddContext(func(ctx context.Context) error {
		// Later steps may have changed the engine's entity tag.
		err := e.Load(ctx)
		if err != nil {
			return err
		}

		return e.ModifyAttribute(ctx, map[string]any{"name": oldName})
	}, onRevertErr)

	supported, err := e.Supports(ctx, "internal_gateway")
	if err != nil {
		return err
	}

	if supported {
		gw, err := e.InternalGateway(ctx)
		if err != nil {
			return err
		}

		err = renameSubElement(ctx, gw.SubElement, fmt.Sprintf("%s Primary", name), reverter, onRevertErr)
		if err != nil {
			return err
		}
	}

	nodes, err := e.Nodes(ctx)
	if err != nil {
		return err
	}

	for _, node := range nodes {
		id, err := node.NodeID(ctx)
		if err != nil {
			return err
		}

		err = renameSubElement(ctx, node.SubElement, fmt.Sprintf("%s node %d", name, id), reverter, onRevertErr)
		if err != nil {
			return err
		}
	}

	reverter.Success()

	logger.Info("Renamed engine", logger.Ctx{"from": oldName, "to": name})
	return nil
}

// renameSubElement renames s and registers the undo step.
func renameSubElement(ctx context.Context, s *SubElement, name string, reverter *revert.Reverter, onErr func(error)) error {
	oldName, err := s.StringAttribute(ctx, "name")
	if err != nil {
		return err
	}

	err = s.ModifyAttribute(ctx, map[string]any{"name": name})
	if err != nil {
		return err
	}

	reverter.AddContext(func(ctx context.Context) error {
		err := s.Load(ctx)
		if err != nil {
			return err
		}

		return s.ModifyAttribute(ctx, map[string]any{"name": oldName})
	}, onErr)

	return nil
}

// InternalGateway is the VPN side of an engine.
type InternalGateway struct {
	*SubElement
}

// VPNSites returns the VPN sites collection.
func (g *InternalGateway) VPNSites(ctx context.Context) (*Collection, error) {
	href, err := g.feature(ctx, "vpn_site")
	if err != nil {
		return nil, err
	}

	return NewCollection(g.conn, href, "vpn_site"), nil
}

// InternalEndpoints returns the interfaces VPN can be enabled on.
func (g *InternalGateway) InternalEndpoints(ctx context.Context) ([]*SubElement, error) {
	href, err := g.feature(ctx, "internal_endpoint")
	if err != nil {
		return nil, err
	}

	return NewCollection(g.conn, href, "internal_endpoint").All(ctx)
}

// GatewayCertificates lists the certificates of the gateway.
func (g *InternalGateway) GatewayCertificates(ctx context.Context) ([]api.ElementEntry, error) {
	href, err := g.feature(ctx, "gateway_certificate")
	if err != nil {
		return nil, err
	}

	return NewCollection(g.conn, href, "gateway_certificate").Entries(ctx)
}

// CertificateRequest is the document posted to generate a gateway certificate.
type CertificateRequest struct {
	Organization         string `json:"organization"`
	CommonName           string `json:"common_name"`
	PublicKeyAlgorithm   string `json:"public_key_algorithm"`
	SignatureAlgorithm   string `json:"signature_algorithm"`
	PublicKeyLength      int    `json:"public_key_length"`
	CertificateAuthority string `json:"certificate_authority_href,omitempty"`
}

// GenerateCertificate has the server issue a VPN certificate for the gateway.
func (g *InternalGateway) GenerateCertificate(ctx context.Context, req CertificateRequest) error {
	href, err := g.feature(ctx, "generate_certificate")
	if err != nil {
		return err
	}

	_, err = g.conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: href, Body: req})
	if err != nil {
		return fmt.Errorf("Failed generating gateway certificate: %w", err)
	}

	return nil
}

// VirtualResources is the collection of virtual engine slots of a master engine.
type VirtualResources struct {
	*Collection
}

// VirtualResourceSpec describes a virtual resource to create.
type VirtualResourceSpec struct {
	Name string

	// Identifier of the virtual engine.
	VFWID int

	// Administrative domain href, the shared domain if empty.
	Domain string

	ShowMasterNIC   bool
	ConnectionLimit int
}

// Create adds a virtual resource and returns an unloaded handle on it.
func (v *VirtualResources) Create(ctx context.Context, spec VirtualResourceSpec) (*SubElement, error) {
	if spec.Name == "" {
		return nil, &api.ValidationError{Field: "name", Value: spec.Name}
	}

	if spec.VFWID <= 0 {
		return nil, &api.ValidationError{Field: "vfw_id", Value: spec.VFWID}
	}

	domain := spec.Domain
	if domain == "" {
		href, err := v.conn.Resolve(ctx, "Shared Domain", "admin_domain")
		if err != nil {
			return nil, err
		}

		domain = href
	}

	doc := map[string]any{
		"name":                 spec.Name,
		"vfw_id":               spec.VFWID,
		"allocated_domain_ref": domain,
		"show_master_nic":      spec.ShowMasterNIC,
		"connection_limit":     spec.ConnectionLimit,
	}

	return v.Collection.Create(ctx, doc)
}

// VFWID returns the virtual engine identifier of a virtual resource.
func VFWID(ctx context.Context, resource *SubElement) (int, error) {
	value, err := resource.Attribute(ctx, "vfw_id")
	if err != nil {
		return 0, err
	}

	return intValue("vfw_id", value)
}

// intValue converts a decoded JSON number.
func intValue(name string, value any) (int, error) {
	switch v := value.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("Attribute %q isn't a number", name)
	}
}
