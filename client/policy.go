package smc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/smcgo/smc/shared/api"
	"github.com/smcgo/smc/shared/logger"
)

// Policy element types.
const (
	TypeFirewallPolicy         = "fw_policy"
	TypeFirewallTemplatePolicy = "fw_template_policy"
	TypeIPSPolicy              = "ips_policy"
	TypeIPSTemplatePolicy      = "ips_template_policy"
	TypeInspectionPolicy       = "inspection_template_policy"
)

// Policy holds the operations common to all policy types.
type Policy struct {
	*Element
}

// GetPolicy resolves a policy of the given type by name.
func GetPolicy(ctx context.Context, conn Connection, typ string, name string) (*Policy, error) {
	e, err := GetElement(ctx, conn, typ, name)
	if err != nil {
		return nil, err
	}

	return &Policy{Element: e}, nil
}

// Upload installs the policy on an engine, returning the upload task.
// Template policies can't be uploaded and fail with an error matching
// api.ErrUnsupportedFeature.
func (p *Policy) Upload(ctx context.Context, engine string) (*Task, error) {
	href, err := p.feature(ctx, "upload")
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("filter", engine)

	resp, err := p.conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: href, Params: params})
	if err != nil {
		return nil, fmt.Errorf("Failed uploading policy %q to %q: %w", p.Name(), engine, err)
	}

	return StartTask(p.conn, resp)
}

// lockCommand posts to a locking relation if the server offers it.
func (p *Policy) lockCommand(ctx context.Context, rel string) error {
	supported, err := p.Supports(ctx, rel)
	if err != nil {
		return err
	}

	if !supported {
		logger.Debug("Policy locking not offered by the server, skipping", logger.Ctx{"policy": p.Name(), "command": rel})
		return nil
	}

	href, err := p.Link(ctx, rel)
	if err != nil {
		return err
	}

	_, err = p.conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: href})
	if err != nil {
		return fmt.Errorf("Failed to %s policy %q: %w", rel, p.Name(), err)
	}

	return nil
}

// Open locks the policy for editing. Servers which don't lock policies
// (API 6.1 and later) don't offer it, which makes Open a no-op.
func (p *Policy) Open(ctx context.Context) error {
	return p.lockCommand(ctx, "open")
}

// Save commits and unlocks a policy opened with Open. A no-op where Open is.
func (p *Policy) Save(ctx context.Context) error {
	return p.lockCommand(ctx, "save")
}

// ForceUnlock releases a lock held by someone else.
func (p *Policy) ForceUnlock(ctx context.Context) error {
	href, err := p.feature(ctx, "force_unlock")
	if err != nil {
		return err
	}

	_, err = p.conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: href})
	if err != nil {
		return fmt.Errorf("Failed unlocking policy %q: %w", p.Name(), err)
	}

	return nil
}

// referenced returns the element referenced by href in a policy field.
func (p *Policy) referenced(ctx context.Context, field string, typ string) (*Element, error) {
	href, err := p.StringAttribute(ctx, field)
	if err != nil {
		return nil, err
	}

	if href == "" {
		return nil, &api.AttributeNotPresentError{Name: field, Type: p.Type()}
	}

	return ElementFromHref(p.conn, href, typ), nil
}

// Template returns the template policy this policy inherits from.
func (p *Policy) Template(ctx context.Context) (*Element, error) {
	return p.referenced(ctx, "template", "")
}

// InspectionPolicy returns the inspection policy referenced by this policy.
func (p *Policy) InspectionPolicy(ctx context.Context) (*Element, error) {
	return p.referenced(ctx, "inspection_policy", TypeInspectionPolicy)
}

// SearchRule returns the rules whose name or tag match filter.
func (p *Policy) SearchRule(ctx context.Context, filter string) ([]*Rule, error) {
	href, err := p.feature(ctx, "search_rule")
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("filter", filter)

	resp, err := get(ctx, p.conn, href, params)
	if err != nil {
		return nil, err
	}

	entries, err := decodeEntries(resp)
	if err != nil {
		return nil, err
	}

	rules := make([]*Rule, 0, len(entries))
	for _, entry := range entries {
		ruleType, err := ParseRuleType(entry.Type)
		if err != nil {
			return nil, err
		}

		rules = append(rules, ruleFromEntry(p.conn, entry, ruleType))
	}

	return rules, nil
}

// rules returns the rule collection behind a relation.
func (p *Policy) rules(ctx context.Context, rel string, ruleType RuleType) (*RuleCollection, error) {
	href, err := p.feature(ctx, rel)
	if err != nil {
		return nil, err
	}

	return NewRuleCollection(p.conn, href, ruleType), nil
}

// FirewallPolicy is a layer 3 firewall policy or policy template.
type FirewallPolicy struct {
	*Policy
}

// GetFirewallPolicy resolves a firewall policy by name.
func GetFirewallPolicy(ctx context.Context, conn Connection, name string) (*FirewallPolicy, error) {
	p, err := GetPolicy(ctx, conn, TypeFirewallPolicy, name)
	if err != nil {
		return nil, err
	}

	return &FirewallPolicy{Policy: p}, nil
}

// GetFirewallTemplatePolicy resolves a firewall policy template by name.
func GetFirewallTemplatePolicy(ctx context.Context, conn Connection, name string) (*FirewallPolicy, error) {
	p, err := GetPolicy(ctx, conn, TypeFirewallTemplatePolicy, name)
	if err != nil {
		return nil, err
	}

	return &FirewallPolicy{Policy: p}, nil
}

// CreateFirewallPolicy creates a firewall policy inheriting from the named template.
func CreateFirewallPolicy(ctx context.Context, conn Connection, name string, template string) (*FirewallPolicy, error) {
	p, err := createPolicy(ctx, conn, TypeFirewallPolicy, TypeFirewallTemplatePolicy, name, template)
	if err != nil {
		return nil, err
	}

	return &FirewallPolicy{Policy: p}, nil
}

// IPv4AccessRules returns the IPv4 access rules.
func (p *FirewallPolicy) IPv4AccessRules(ctx context.Context) (*RuleCollection, error) {
	return p.rules(ctx, "fw_ipv4_access_rules", RuleIPv4Access)
}

// IPv6AccessRules returns the IPv6 access rules.
func (p *FirewallPolicy) IPv6AccessRules(ctx context.Context) (*RuleCollection, error) {
	return p.rules(ctx, "fw_ipv6_access_rules", RuleIPv6Access)
}

// IPv4NATRules returns the IPv4 NAT rules.
func (p *FirewallPolicy) IPv4NATRules(ctx context.Context) (*RuleCollection, error) {
	return p.rules(ctx, "fw_ipv4_nat_rules", RuleIPv4NAT)
}

// IPv6NATRules returns the IPv6 NAT rules.
func (p *FirewallPolicy) IPv6NATRules(ctx context.Context) (*RuleCollection, error) {
	return p.rules(ctx, "fw_ipv6_nat_rules", RuleIPv6NAT)
}

// IPSPolicy is an IPS policy or policy template.
type IPSPolicy struct {
	*Policy
}

// GetIPSPolicy resolves an IPS policy by name.
func GetIPSPolicy(ctx context.Context, conn Connection, name string) (*IPSPolicy, error) {
	p, err := GetPolicy(ctx, conn, TypeIPSPolicy, name)
	if err != nil {
		return nil, err
	}

	return &IPSPolicy{Policy: p}, nil
}

// CreateIPSPolicy creates an IPS policy inheriting from the named template.
func CreateIPSPolicy(ctx context.Context, conn Connection, name string, template string) (*IPSPolicy, error) {
	p, err := createPolicy(ctx, conn, TypeIPSPolicy, TypeIPSTemplatePolicy, name, template)
	if err != nil {
		return nil, err
	}

	return &IPSPolicy{Policy: p}, nil
}

// IPv4AccessRules returns the layer 2 IPv4 access rules.
func (p *IPSPolicy) IPv4AccessRules(ctx context.Context) (*RuleCollection, error) {
	return p.rules(ctx, "ips_ipv4_access_rules", RuleLayer2IPv4Access)
}

// EthernetRules returns the ethernet rules.
func (p *IPSPolicy) EthernetRules(ctx context.Context) (*RuleCollection, error) {
	return p.rules(ctx, "ips_ethernet_rules", RuleEthernet)
}

// createPolicy posts a new policy referencing a template.
func createPolicy(ctx context.Context, conn Connection, typ string, templateType string, name string, template string) (*Policy, error) {
	templateHref, err := conn.Resolve(ctx, template, templateType)
	if err != nil {
		return nil, fmt.Errorf("Failed finding template %q: %w", template, err)
	}

	href, err := conn.EntryPoint(ctx, typ)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{
		"name":     name,
		"template": templateHref,
	}

	resp, err := conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: href, Body: doc})
	if err != nil {
		return nil, fmt.Errorf("Failed creating policy %q: %w", name, err)
	}

	if resp.Href == href {
		return nil, fmt.Errorf("Server didn't return the location of policy %q", name)
	}

	return &Policy{Element: NewElement(conn, NewHandle(resp.Href, typ, name))}, nil
}
