package smc

import (
	"strings"

	"github.com/smcgo/smc/shared/api"
)

// NATKind is the kind of address translation a NAT rule does.
type NATKind string

// NAT kinds.
const (
	NATDynamicSource     NATKind = "dynamic_src_nat"
	NATStaticSource      NATKind = "static_src_nat"
	NATStaticDestination NATKind = "static_dst_nat"
)

// Default port range used for dynamic source NAT.
const (
	DefaultNATMinPort = 1024
	DefaultNATMaxPort = 65535
)

// NATSpec describes the translation of a NAT rule.
type NATSpec struct {
	Kind NATKind

	// Translated is an IP address or an element href.
	Translated string

	// Port range, dynamic source NAT defaults to 1024-65535.
	// Destination NAT maps MinPort onto MaxPort when both are set.
	MinPort int
	MaxPort int

	// Proxy ARP for the translated address.
	AutomaticProxy bool
}

// natValue builds the value document of an IP address or element href.
func natValue(value string) map[string]any {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return map[string]any{"element": value}
	}

	return map[string]any{"ip_descriptor": value}
}

// Document builds the NAT part of the rule options. The original value is
// taken from the rule's sources (source NAT) or destinations (destination NAT).
func (n NATSpec) Document(sources *MatchField, destinations *MatchField) (map[string]any, error) {
	if n.Translated == "" {
		return nil, &api.ValidationError{Field: "translated_value", Value: n.Translated}
	}

	if n.MinPort < 0 || n.MaxPort < 0 || n.MaxPort > DefaultNATMaxPort {
		return nil, &api.ValidationError{Field: "translated_ports", Value: [2]int{n.MinPort, n.MaxPort}}
	}

	doc := map[string]any{"automatic_proxy": n.AutomaticProxy}

	switch n.Kind {
	case NATDynamicSource:
		minPort, maxPort := n.MinPort, n.MaxPort
		if minPort == 0 && maxPort == 0 {
			minPort, maxPort = DefaultNATMinPort, DefaultNATMaxPort
		}

		if maxPort < minPort {
			return nil, &api.ValidationError{Field: "translated_ports", Value: [2]int{minPort, maxPort}}
		}

		value := natValue(n.Translated)
		value["min_port"] = minPort
		value["max_port"] = maxPort
		doc["translation_values"] = []any{value}

	case NATStaticSource:
		original, err := firstReference(sources, "sources")
		if err != nil {
			return nil, err
		}

		doc["original_value"] = map[string]any{"element": original}
		doc["translated_value"] = natValue(n.Translated)

	case NATStaticDestination:
		original, err := firstReference(destinations, "destinations")
		if err != nil {
			return nil, err
		}

		originalValue := map[string]any{"element": original}
		translated := natValue(n.Translated)
		if n.MinPort > 0 && n.MaxPort > 0 {
			originalValue["min_port"] = n.MinPort
			originalValue["max_port"] = n.MinPort
			translated["min_port"] = n.MaxPort
			translated["max_port"] = n.MaxPort
		}

		doc["original_value"] = originalValue
		doc["translated_value"] = translated

	default:
		return nil, &api.ValidationError{Field: "nat", Value: n.Kind, Allowed: []string{string(NATDynamicSource), string(NATStaticSource), string(NATStaticDestination)}}
	}

	return doc, nil
}

// firstReference returns the first href of an enumerated field. Static NAT
// can't translate any or none.
func firstReference(field *MatchField, name string) (string, error) {
	if field == nil || field.IsAny() || field.IsNone() {
		return "", &api.ValidationError{Field: name, Value: "any or none"}
	}

	hrefs := field.AllAsHref()
	if len(hrefs) == 0 {
		return "", &api.ValidationError{Field: name, Value: "empty"}
	}

	return hrefs[0], nil
}
