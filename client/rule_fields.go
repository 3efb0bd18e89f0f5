package smc

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/smcgo/smc/shared/api"
	"github.com/smcgo/smc/shared/logger"
	"github.com/smcgo/smc/shared/util"
)

// Reference is anything a match field can point at.
type Reference interface {
	Href() string
}

// Ref is a raw href usable as a Reference.
type Ref string

// Href implements Reference.
func (r Ref) Href() string {
	return string(r)
}

// MatchKind identifies which rule criterion a MatchField describes.
type MatchKind struct {
	// Document key of the field in the rule.
	Field string

	// Key holding the references inside the field.
	List string
}

// Rule criteria.
var (
	MatchSources      = MatchKind{Field: "sources", List: "src"}
	MatchDestinations = MatchKind{Field: "destinations", List: "dst"}
	MatchServices     = MatchKind{Field: "services", List: "service"}
)

// MatchField is a rule's sources, destinations or services.
//
// It is in exactly one of three modes: any, none or an enumerated list of
// references. Adding references leaves any/none mode.
type MatchField struct {
	kind MatchKind
	data map[string]any
}

// NewMatchField wraps a field document. A nil document is "none".
func NewMatchField(kind MatchKind, data map[string]any) *MatchField {
	if data == nil {
		return &MatchField{kind: kind, data: map[string]any{"none": true}}
	}

	return &MatchField{kind: kind, data: util.DeepCopyMap(data)}
}

// AnyOf returns a field matching everything.
func AnyOf(kind MatchKind) *MatchField {
	return &MatchField{kind: kind, data: map[string]any{"any": true}}
}

// NoneOf returns a field matching nothing.
func NoneOf(kind MatchKind) *MatchField {
	return &MatchField{kind: kind, data: map[string]any{"none": true}}
}

// OneOf returns an enumerated field holding refs.
func OneOf(kind MatchKind, refs ...Reference) (*MatchField, error) {
	f := &MatchField{kind: kind, data: map[string]any{}}
	err := f.AddMany(refs...)
	if err != nil {
		return nil, err
	}

	return f, nil
}

// Kind returns the criterion of the field.
func (f *MatchField) Kind() MatchKind {
	return f.kind
}

// IsAny returns whether the field matches everything.
func (f *MatchField) IsAny() bool {
	_, ok := f.data["any"]
	return ok
}

// IsNone returns whether the field matches nothing.
func (f *MatchField) IsNone() bool {
	_, ok := f.data["none"]
	return ok
}

// SetAny switches the field to match everything, dropping all references.
func (f *MatchField) SetAny() {
	f.data = map[string]any{"any": true}
}

// SetNone switches the field to match nothing, dropping all references.
func (f *MatchField) SetNone() {
	f.data = map[string]any{"none": true}
}

// Add appends a reference, leaving any/none mode.
func (f *MatchField) Add(ref Reference) error {
	return f.AddMany(ref)
}

// AddMany appends references, leaving any/none mode. Nothing is added if
// one of them has no href.
func (f *MatchField) AddMany(refs ...Reference) error {
	hrefs := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref == nil || ref.Href() == "" {
			return &api.ValidationError{Field: f.kind.Field, Value: ref}
		}

		hrefs = append(hrefs, ref.Href())
	}

	current := f.AllAsHref()
	delete(f.data, "any")
	delete(f.data, "none")

	list := make([]any, 0, len(current)+len(hrefs))
	for _, href := range append(current, hrefs...) {
		list = append(list, href)
	}

	f.data[f.kind.List] = list

	return nil
}

// AllAsHref returns the referenced hrefs, unresolved ones included.
// Any and none fields hold no references.
func (f *MatchField) AllAsHref() []string {
	hrefs := []string{}

	switch list := f.data[f.kind.List].(type) {
	case []any:
		for _, v := range list {
			s, ok := v.(string)
			if ok {
				hrefs = append(hrefs, s)
			}
		}

	case []string:
		hrefs = append(hrefs, list...)
	}

	return hrefs
}

// All returns the referenced elements.
//
// References which don't resolve anymore are skipped and logged, a stale
// reference in a rule doesn't make the rest unreadable.
func (f *MatchField) All(ctx context.Context, conn Connection) ([]*Element, error) {
	elements := []*Element{}
	for _, href := range f.AllAsHref() {
		e := ElementFromHref(conn, href, "")
		err := e.Load(ctx)
		if err != nil {
			if errors.Is(err, api.ErrNotFound) {
				logger.Warn("Skipping unresolved rule reference", logger.Ctx{"field": f.kind.Field, "href": href})
				continue
			}

			return nil, err
		}

		elements = append(elements, e)
	}

	return elements, nil
}

// Document returns the field document.
func (f *MatchField) Document() map[string]any {
	return util.DeepCopyMap(f.data)
}

// String implements fmt.Stringer.
func (f *MatchField) String() string {
	switch {
	case f.IsAny():
		return "any"
	case f.IsNone():
		return "none"
	default:
		return fmt.Sprintf("%d references", len(f.AllAsHref()))
	}
}

// validate checks value against allowed, returning a ValidationError if it isn't in it.
func validate(field string, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return &api.ValidationError{Field: field, Value: value, Allowed: allowed}
	}

	return nil
}
