package smc

import (
	"context"
	"fmt"
	"reflect"

	"github.com/smcgo/smc/shared/api"
	"github.com/smcgo/smc/shared/util"
)

// RuleType is the closed set of rule kinds.
type RuleType string

// Rule kinds.
const (
	RuleIPv4Access       RuleType = "fw_ipv4_access_rule"
	RuleIPv6Access       RuleType = "fw_ipv6_access_rule"
	RuleIPv4NAT          RuleType = "fw_ipv4_nat_rule"
	RuleIPv6NAT          RuleType = "fw_ipv6_nat_rule"
	RuleLayer2IPv4Access RuleType = "layer2_ipv4_access_rule"
	RuleEthernet         RuleType = "ethernet_rule"
)

// ParseRuleType maps a server type tag onto a RuleType.
func ParseRuleType(tag string) (RuleType, error) {
	switch tag {
	case "fw_ipv4_access_rule":
		return RuleIPv4Access, nil
	case "fw_ipv6_access_rule":
		return RuleIPv6Access, nil
	case "fw_ipv4_nat_rule":
		return RuleIPv4NAT, nil
	case "fw_ipv6_nat_rule":
		return RuleIPv6NAT, nil
	case "ips_ipv4_access_rule", "layer2_ipv4_access_rule":
		return RuleLayer2IPv4Access, nil
	case "ips_ethernet_rule", "ethernet_rule":
		return RuleEthernet, nil
	default:
		return "", fmt.Errorf("Unknown rule type %q", tag)
	}
}

// IsNAT returns whether the rule translates addresses rather than filtering.
func (t RuleType) IsNAT() bool {
	return t == RuleIPv4NAT || t == RuleIPv6NAT
}

// Rule is a single rule of a policy.
//
// Field accessors return values bound to the rule: changes made on them are
// written by Save.
type Rule struct {
	*SubElement

	ruleType RuleType

	sources      *MatchField
	destinations *MatchField
	services     *MatchField
	action       *Action
	options      *LogOptions
	auth         *AuthenticationOptions
	timeRange    *TimeRange
	disabled     *bool
	comment      *string

	// Option bag documents as read, only changed bags are written back.
	read map[string]map[string]any
}

// NewRule wraps the rule at href without fetching anything.
func NewRule(conn Connection, href string, ruleType RuleType) *Rule {
	return &Rule{SubElement: NewSubElement(conn, href, string(ruleType)), ruleType: ruleType}
}

func ruleFromEntry(conn Connection, entry api.ElementEntry, ruleType RuleType) *Rule {
	return &Rule{SubElement: subElementFromEntry(conn, entry), ruleType: ruleType}
}

// RuleType returns the kind of the rule.
func (r *Rule) RuleType() RuleType {
	return r.ruleType
}

// document returns the sub-document stored under key, nil if absent.
func (r *Rule) document(ctx context.Context, key string) (map[string]any, error) {
	value, err := r.Attribute(ctx, key)
	if err != nil {
		if isAttributeNotPresent(err) {
			return nil, nil
		}

		return nil, err
	}

	doc, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Rule field %q isn't a document", key)
	}

	return doc, nil
}

func (r *Rule) matchField(ctx context.Context, kind MatchKind, cached **MatchField) (*MatchField, error) {
	if *cached != nil {
		return *cached, nil
	}

	doc, err := r.document(ctx, kind.Field)
	if err != nil {
		return nil, err
	}

	*cached = NewMatchField(kind, doc)
	return *cached, nil
}

// Sources returns the rule's sources.
func (r *Rule) Sources(ctx context.Context) (*MatchField, error) {
	return r.matchField(ctx, MatchSources, &r.sources)
}

// Destinations returns the rule's destinations.
func (r *Rule) Destinations(ctx context.Context) (*MatchField, error) {
	return r.matchField(ctx, MatchDestinations, &r.destinations)
}

// Services returns the rule's services.
func (r *Rule) Services(ctx context.Context) (*MatchField, error) {
	return r.matchField(ctx, MatchServices, &r.services)
}

// Action returns the rule's action. NAT rules have none.
func (r *Rule) Action(ctx context.Context) (*Action, error) {
	if r.ruleType.IsNAT() {
		return nil, &api.UnsupportedFeatureError{Feature: "action", Type: string(r.ruleType)}
	}

	if r.action != nil {
		return r.action, nil
	}

	doc, err := r.document(ctx, "action")
	if err != nil {
		return nil, err
	}

	action := NewAction()
	if doc != nil {
		err = decodeOptions(doc, &action)
		if err != nil {
			return nil, fmt.Errorf("Failed decoding rule action: %w", err)
		}
	}

	actions, err := r.availableActions(ctx)
	if err != nil {
		return nil, err
	}

	action.available = actions
	r.action = &action
	r.remember("action", action.Document())

	return r.action, nil
}

// availableActions returns the actions the server accepts for this rule, if it says.
func (r *Rule) availableActions(ctx context.Context) ([]string, error) {
	value, err := r.Attribute(ctx, "actions")
	if err != nil {
		if isAttributeNotPresent(err) {
			return nil, nil
		}

		return nil, err
	}

	list, ok := value.([]any)
	if !ok {
		return nil, nil
	}

	actions := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if ok {
			actions = append(actions, s)
		}
	}

	return actions, nil
}

// Options returns the rule's logging options.
func (r *Rule) Options(ctx context.Context) (*LogOptions, error) {
	if r.options != nil {
		return r.options, nil
	}

	doc, err := r.document(ctx, "options")
	if err != nil {
		return nil, err
	}

	options := NewLogOptions()
	if doc != nil {
		err = decodeOptions(doc, &options)
		if err != nil {
			return nil, fmt.Errorf("Failed decoding rule options: %w", err)
		}
	}

	r.options = &options
	r.remember("options", options.Document())

	return r.options, nil
}

// AuthenticationOptions returns the rule's user authentication settings. NAT rules have none.
func (r *Rule) AuthenticationOptions(ctx context.Context) (*AuthenticationOptions, error) {
	if r.ruleType.IsNAT() {
		return nil, &api.UnsupportedFeatureError{Feature: "authentication_options", Type: string(r.ruleType)}
	}

	if r.auth != nil {
		return r.auth, nil
	}

	doc, err := r.document(ctx, "authentication_options")
	if err != nil {
		return nil, err
	}

	auth := NewAuthenticationOptions()
	if doc != nil {
		err = decodeOptions(doc, &auth)
		if err != nil {
			return nil, fmt.Errorf("Failed decoding rule authentication options: %w", err)
		}
	}

	r.auth = &auth
	r.remember("authentication_options", auth.Document())

	return r.auth, nil
}

// TimeRange returns the rule's validity range.
func (r *Rule) TimeRange(ctx context.Context) (*TimeRange, error) {
	if r.timeRange != nil {
		return r.timeRange, nil
	}

	doc, err := r.document(ctx, "time_range")
	if err != nil {
		return nil, err
	}

	timeRange := TimeRange{}
	if doc != nil {
		err = decodeOptions(doc, &timeRange)
		if err != nil {
			return nil, fmt.Errorf("Failed decoding rule time range: %w", err)
		}
	}

	r.timeRange = &timeRange
	r.remember("time_range", timeRange.Document())

	return r.timeRange, nil
}

// optionBag is a typed rule sub-document.
type optionBag interface {
	Validate() error
	Document() map[string]any
}

// remember keeps a copy of an option bag document as read.
func (r *Rule) remember(key string, doc map[string]any) {
	if r.read == nil {
		r.read = map[string]map[string]any{}
	}

	r.read[key] = util.DeepCopyMap(doc)
}

// addChangedOption adds the document of an option bag to fields if it differs from what was read.
// Unchanged bags are left alone, so the server document is written back untouched.
func (r *Rule) addChangedOption(fields map[string]any, key string, bag optionBag) error {
	doc := bag.Document()
	if reflect.DeepEqual(doc, r.read[key]) {
		return nil
	}

	err := bag.Validate()
	if err != nil {
		return err
	}

	fields[key] = doc
	return nil
}

// Comment returns the rule comment, including pending changes.
func (r *Rule) Comment(ctx context.Context) (string, error) {
	if r.comment != nil {
		return *r.comment, nil
	}

	return r.StringAttribute(ctx, "comment")
}

// SetComment changes the rule comment. Call Save to apply.
func (r *Rule) SetComment(comment string) {
	r.comment = &comment
}

// IsDisabled returns whether the rule is disabled, including pending changes.
func (r *Rule) IsDisabled(ctx context.Context) (bool, error) {
	if r.disabled != nil {
		return *r.disabled, nil
	}

	value, err := r.Attribute(ctx, "is_disabled")
	if err != nil {
		if isAttributeNotPresent(err) {
			return false, nil
		}

		return false, err
	}

	disabled, _ := value.(bool)
	return disabled, nil
}

// Enable marks the rule enabled. Call Save to apply.
func (r *Rule) Enable() {
	disabled := false
	r.disabled = &disabled
}

// Disable marks the rule disabled. Call Save to apply.
func (r *Rule) Disable() {
	disabled := true
	r.disabled = &disabled
}

// Changes returns the fields Save would write.
func (r *Rule) Changes() (map[string]any, error) {
	fields := map[string]any{}

	for _, f := range []*MatchField{r.sources, r.destinations, r.services} {
		if f != nil {
			fields[f.Kind().Field] = f.Document()
		}
	}

	if r.action != nil {
		err := r.addChangedOption(fields, "action", r.action)
		if err != nil {
			return nil, err
		}
	}

	if r.options != nil {
		err := r.addChangedOption(fields, "options", r.options)
		if err != nil {
			return nil, err
		}
	}

	if r.auth != nil {
		err := r.addChangedOption(fields, "authentication_options", r.auth)
		if err != nil {
			return nil, err
		}
	}

	if r.timeRange != nil {
		err := r.addChangedOption(fields, "time_range", r.timeRange)
		if err != nil {
			return nil, err
		}
	}

	if r.disabled != nil {
		fields["is_disabled"] = *r.disabled
	}

	if r.comment != nil {
		fields["comment"] = *r.comment
	}

	return fields, nil
}

// Save writes the pending changes back, guarded by the rule's entity tag.
func (r *Rule) Save(ctx context.Context) error {
	fields, err := r.Changes()
	if err != nil {
		return err
	}

	if len(fields) == 0 {
		return nil
	}

	err = r.ModifyAttribute(ctx, fields)
	if err != nil {
		return err
	}

	r.reset()
	return nil
}

// reset drops the pending changes so accessors read the server state again.
func (r *Rule) reset() {
	r.sources = nil
	r.destinations = nil
	r.services = nil
	r.action = nil
	r.options = nil
	r.auth = nil
	r.timeRange = nil
	r.disabled = nil
	r.comment = nil
	r.read = nil
}

// RuleSpec describes a rule to create. Nil match fields match any.
type RuleSpec struct {
	Name         string
	Comment      string
	Sources      *MatchField
	Destinations *MatchField
	Services     *MatchField

	// Action defaults to NewAction, ignored for NAT rules.
	Action *Action

	// Options defaults to NewLogOptions.
	Options *LogOptions

	// NAT is only used by NAT rules, no translation if nil.
	NAT *NATSpec

	// UsedOn restricts a NAT rule to one engine, by href.
	UsedOn string

	IsDisabled bool
}

// Document builds the rule document for a rule kind.
func (s RuleSpec) Document(ruleType RuleType) (map[string]any, error) {
	if s.Name == "" {
		return nil, &api.ValidationError{Field: "name", Value: s.Name}
	}

	doc := map[string]any{
		"name":        s.Name,
		"comment":     s.Comment,
		"is_disabled": s.IsDisabled,
	}

	fields := []struct {
		kind  MatchKind
		field *MatchField
	}{
		{kind: MatchSources, field: s.Sources},
		{kind: MatchDestinations, field: s.Destinations},
		{kind: MatchServices, field: s.Services},
	}

	for _, f := range fields {
		field := f.field
		if field == nil {
			field = AnyOf(f.kind)
		}

		doc[f.kind.Field] = field.Document()
	}

	options := NewLogOptions()
	if s.Options != nil {
		options = *s.Options
	}

	err := options.Validate()
	if err != nil {
		return nil, err
	}

	doc["options"] = options.Document()

	if ruleType.IsNAT() {
		if s.NAT != nil {
			nat, err := s.NAT.Document(s.Sources, s.Destinations)
			if err != nil {
				return nil, err
			}

			doc["options"].(map[string]any)[string(s.NAT.Kind)] = nat
		}

		if s.UsedOn != "" {
			doc["used_on"] = s.UsedOn
		}
	} else {
		action := NewAction()
		if s.Action != nil {
			action = *s.Action
		}

		err := action.Validate()
		if err != nil {
			return nil, err
		}

		doc["action"] = action.Document()
	}

	return doc, nil
}

// RuleCollection is the list of rules of one kind in a policy.
type RuleCollection struct {
	*Collection

	ruleType RuleType
}

// NewRuleCollection wraps the rule collection at href.
func NewRuleCollection(conn Connection, href string, ruleType RuleType) *RuleCollection {
	return &RuleCollection{Collection: NewCollection(conn, href, string(ruleType)), ruleType: ruleType}
}

// RuleType returns the kind of rules in the collection.
func (c *RuleCollection) RuleType() RuleType {
	return c.ruleType
}

// All returns handles on all the rules of the collection. Nothing is loaded.
func (c *RuleCollection) All(ctx context.Context) ([]*Rule, error) {
	entries, err := c.Entries(ctx)
	if err != nil {
		return nil, err
	}

	rules := make([]*Rule, 0, len(entries))
	for _, entry := range entries {
		rules = append(rules, ruleFromEntry(c.conn, entry, c.ruleType))
	}

	return rules, nil
}

// Create adds a rule to the collection and returns an unloaded handle on it.
func (c *RuleCollection) Create(ctx context.Context, spec RuleSpec) (*Rule, error) {
	doc, err := spec.Document(c.ruleType)
	if err != nil {
		return nil, err
	}

	sub, err := c.Collection.Create(ctx, doc)
	if err != nil {
		return nil, err
	}

	return &Rule{SubElement: sub, ruleType: c.ruleType}, nil
}
