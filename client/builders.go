package smc

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"

	"github.com/smcgo/smc/shared/api"
	"github.com/smcgo/smc/shared/util"
)

// CreateElement creates an element of the given kind out of its template
// overlaid with fields. The new element isn't loaded.
func CreateElement(ctx context.Context, conn Connection, templates TemplateLoader, kind string, fields map[string]any) (*Element, error) {
	base, err := templates.LoadTemplate(kind)
	if err != nil {
		return nil, err
	}

	doc := util.MergeMap(base, fields)

	name, _ := doc["name"].(string)
	if name == "" {
		return nil, &api.ValidationError{Field: "name", Value: ""}
	}

	href, err := conn.EntryPoint(ctx, kind)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: href, Body: doc})
	if err != nil {
		return nil, fmt.Errorf("Failed creating %s %q: %w", kind, name, err)
	}

	if resp.Href == "" || resp.Href == href {
		return nil, fmt.Errorf("Server didn't return the location of %s %q", kind, name)
	}

	return NewElement(conn, NewHandle(resp.Href, kind, name)), nil
}

func parseAddress(field string, value string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, &api.ValidationError{Field: field, Value: value}
	}

	return addr, nil
}

// addressFields sets address or ipv6_address depending on the family.
func addressFields(name string, address string, secondary []string) (map[string]any, error) {
	addr, err := parseAddress("address", address)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{"name": name}
	if addr.Is4() {
		doc["address"] = addr.String()
	} else {
		doc["ipv6_address"] = addr.String()
	}

	others := make([]any, 0, len(secondary))
	for _, entry := range secondary {
		addr, err := parseAddress("secondary", entry)
		if err != nil {
			return nil, err
		}

		others = append(others, addr.String())
	}

	doc["secondary"] = others

	return doc, nil
}

// HostDocument returns the fields of a host element.
func HostDocument(name string, address string, secondary ...string) (map[string]any, error) {
	return addressFields(name, address, secondary)
}

// RouterDocument returns the fields of a router element.
func RouterDocument(name string, address string, secondary ...string) (map[string]any, error) {
	return addressFields(name, address, secondary)
}

// NetworkDocument returns the fields of a network element. cidr is either an
// IPv4 or an IPv6 prefix.
func NetworkDocument(name string, cidr string) (map[string]any, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, &api.ValidationError{Field: "network", Value: cidr}
	}

	doc := map[string]any{"name": name}
	if prefix.Addr().Is4() {
		doc["ipv4_network"] = prefix.Masked().String()
	} else {
		doc["ipv6_network"] = prefix.Masked().String()
	}

	return doc, nil
}

// AddressRangeDocument returns the fields of an address range such as
// "10.0.0.1-10.0.0.254".
func AddressRangeDocument(name string, ipRange string) (map[string]any, error) {
	bounds := util.SplitNTrimSpace(ipRange, "-", 2, true)
	if len(bounds) != 2 {
		return nil, &api.ValidationError{Field: "ip_range", Value: ipRange}
	}

	start, err := parseAddress("ip_range", bounds[0])
	if err != nil {
		return nil, err
	}

	end, err := parseAddress("ip_range", bounds[1])
	if err != nil {
		return nil, err
	}

	if start.BitLen() != end.BitLen() || end.Less(start) {
		return nil, &api.ValidationError{Field: "ip_range", Value: ipRange}
	}

	return map[string]any{
		"name":     name,
		"ip_range": start.String() + "-" + end.String(),
	}, nil
}

// GroupDocument returns the fields of a group holding members.
func GroupDocument(name string, members ...Reference) (map[string]any, error) {
	hrefs := make([]any, 0, len(members))
	for _, member := range members {
		if member == nil || member.Href() == "" {
			return nil, &api.ValidationError{Field: "element", Value: ""}
		}

		hrefs = append(hrefs, member.Href())
	}

	return map[string]any{
		"name":    name,
		"element": hrefs,
	}, nil
}

// ServiceDocument returns the fields of a TCP or UDP service. A zero maxPort
// makes it a single port service.
func ServiceDocument(name string, minPort int, maxPort int) (map[string]any, error) {
	if minPort < 1 || minPort > 65535 {
		return nil, &api.ValidationError{Field: "min_dst_port", Value: minPort}
	}

	doc := map[string]any{
		"name":         name,
		"min_dst_port": minPort,
	}

	if maxPort != 0 {
		if maxPort < minPort || maxPort > 65535 {
			return nil, &api.ValidationError{Field: "max_dst_port", Value: maxPort}
		}

		doc["max_dst_port"] = maxPort
	} else {
		doc["max_dst_port"] = minPort
	}

	return doc, nil
}

// WithComment returns a copy of fields carrying comment.
func WithComment(fields map[string]any, comment string) map[string]any {
	return util.MergeMap(fields, map[string]any{"comment": comment})
}
