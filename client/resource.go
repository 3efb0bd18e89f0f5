package smc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/smcgo/smc/shared/api"
	"github.com/smcgo/smc/shared/logger"
	"github.com/smcgo/smc/shared/util"
)

// Handle identifies a remote resource. It is immutable.
type Handle struct {
	href string
	typ  string
	name string
}

// NewHandle returns the handle of the resource at href.
func NewHandle(href string, typ string, name string) Handle {
	return Handle{href: href, typ: typ, name: name}
}

// HandleFromEntry returns the handle of a search or collection entry.
func HandleFromEntry(entry api.ElementEntry) Handle {
	return Handle{href: entry.Href, typ: entry.Type, name: entry.Name}
}

// Href returns the location of the resource.
func (h Handle) Href() string {
	return h.href
}

// Type returns the element type, may be empty.
func (h Handle) Type() string {
	return h.typ
}

// Name returns the element name, may be empty.
func (h Handle) Name() string {
	return h.name
}

// Links maps relation names to hrefs.
type Links map[string]string

func newLinks(links []api.Link) Links {
	out := make(Links, len(links))
	for _, l := range links {
		out[l.Rel] = l.Href
	}

	return out
}

// Has returns whether the relation is present.
func (l Links) Has(rel string) bool {
	_, ok := l[rel]
	return ok
}

// Relations returns the sorted relation names.
func (l Links) Relations() []string {
	rels := make([]string, 0, len(l))
	for rel := range l {
		rels = append(rels, rel)
	}

	sort.Strings(rels)

	return rels
}

// resource holds the state shared by elements and sub-elements.
//
// The representation and the links are always populated by the same fetch.
// A mutation marks both as stale while keeping the last observed document
// and entity tag around for optimistic concurrency.
type resource struct {
	conn   Connection
	handle Handle

	mu      sync.Mutex
	data    map[string]any
	links   Links
	etag    string
	fresh   bool
	deleted bool
}

func newResource(conn Connection, handle Handle) *resource {
	return &resource{conn: conn, handle: handle}
}

// Href returns the location of the resource.
func (r *resource) Href() string {
	return r.handle.href
}

// Handle returns the identity of the resource.
func (r *resource) Handle() Handle {
	return r.handle
}

// Type returns the element type, falling back to the loaded representation.
func (r *resource) Type() string {
	if r.handle.typ != "" {
		return r.handle.typ
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	typ, _ := r.data["type"].(string)
	return typ
}

// ETag returns the last observed entity tag.
func (r *resource) ETag() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.etag
}

// IsLoaded returns whether a current representation is cached.
func (r *resource) IsLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.fresh
}

// IsDeleted returns whether Delete succeeded on this resource.
func (r *resource) IsDeleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.deleted
}

func (r *resource) logger() logger.Logger {
	return logger.AddContext(logger.Ctx{"href": r.handle.href, "type": r.handle.typ})
}

// Load fetches the representation, replacing any cached state.
func (r *resource) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loadLocked(ctx)
}

func (r *resource) loadLocked(ctx context.Context) error {
	if r.deleted {
		return api.ErrElementDeleted
	}

	resp, err := get(ctx, r.conn, r.handle.href, nil)
	if err != nil {
		return fmt.Errorf("Failed loading %q: %w", r.handle.href, err)
	}

	doc := map[string]any{}
	if len(resp.JSON) > 0 {
		err = json.Unmarshal(resp.JSON, &doc)
		if err != nil {
			return fmt.Errorf("Failed decoding %q: %w", r.handle.href, err)
		}
	}

	links := []api.Link{}
	raw, ok := doc["link"]
	if ok {
		err = decodeDocument(raw, &links)
		if err != nil {
			return fmt.Errorf("Failed decoding links of %q: %w", r.handle.href, err)
		}

		delete(doc, "link")
	}

	r.data = doc
	r.links = newLinks(links)
	r.etag = resp.ETag
	r.fresh = true

	r.logger().Debug("Loaded representation", logger.Ctx{"etag": r.etag})

	return nil
}

// ensureLocked loads the representation unless a current one is cached.
func (r *resource) ensureLocked(ctx context.Context) error {
	if r.deleted {
		return api.ErrElementDeleted
	}

	if r.fresh {
		return nil
	}

	return r.loadLocked(ctx)
}

// Attribute returns a top-level field of the representation, loading it first if needed.
func (r *resource) Attribute(ctx context.Context, name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.ensureLocked(ctx)
	if err != nil {
		return nil, err
	}

	value, ok := r.data[name]
	if !ok {
		return nil, &api.AttributeNotPresentError{Name: name, Type: r.handle.typ}
	}

	return util.DeepCopyValue(value), nil
}

// StringAttribute returns a string field, or an empty string if absent.
func (r *resource) StringAttribute(ctx context.Context, name string) (string, error) {
	value, err := r.Attribute(ctx, name)
	if err != nil {
		if isAttributeNotPresent(err) {
			return "", nil
		}

		return "", err
	}

	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("Attribute %q isn't a string", name)
	}

	return s, nil
}

// Data returns a copy of the representation, loading it first if needed.
func (r *resource) Data(ctx context.Context) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.ensureLocked(ctx)
	if err != nil {
		return nil, err
	}

	return util.DeepCopyMap(r.data), nil
}

// Decode fills target from the representation, loading it first if needed.
func (r *resource) Decode(ctx context.Context, target any) error {
	data, err := r.Data(ctx)
	if err != nil {
		return err
	}

	return decodeDocument(data, target)
}

// Links returns the relations of the loaded representation.
//
// It never fetches: before the first load it fails with an error matching
// api.ErrNotLoaded.
func (r *resource) Links() (Links, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return nil, api.ErrElementDeleted
	}

	if !r.fresh {
		return nil, &api.LinkNotFoundError{Loaded: false}
	}

	out := make(Links, len(r.links))
	for k, v := range r.links {
		out[k] = v
	}

	return out, nil
}

// LinkFor returns the href of a relation without fetching anything.
//
// The error matches api.ErrNotLoaded if the representation was never loaded
// (or was invalidated by a mutation) and api.ErrNotFound if the relation is
// absent from the loaded representation.
func (r *resource) LinkFor(rel string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return "", api.ErrElementDeleted
	}

	if !r.fresh {
		return "", &api.LinkNotFoundError{Relation: rel, Loaded: false}
	}

	href, ok := r.links[rel]
	if !ok {
		return "", &api.LinkNotFoundError{Relation: rel, Loaded: true}
	}

	return href, nil
}

// Link returns the href of a relation, loading the representation first if needed.
func (r *resource) Link(ctx context.Context, rel string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.ensureLocked(ctx)
	if err != nil {
		return "", err
	}

	href, ok := r.links[rel]
	if !ok {
		return "", &api.LinkNotFoundError{Relation: rel, Loaded: true}
	}

	return href, nil
}

// Supports returns whether the resource offers a relation.
func (r *resource) Supports(ctx context.Context, rel string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.ensureLocked(ctx)
	if err != nil {
		return false, err
	}

	return r.links.Has(rel), nil
}

// feature returns the href of a relation, or an UnsupportedFeatureError if absent.
func (r *resource) feature(ctx context.Context, rel string) (string, error) {
	href, err := r.Link(ctx, rel)
	if err != nil {
		var missing *api.LinkNotFoundError
		if errors.As(err, &missing) {
			return "", &api.UnsupportedFeatureError{Feature: rel, Type: r.Type()}
		}

		return "", err
	}

	return href, nil
}

// ModifyAttribute replaces top-level fields of the representation and
// writes the whole document back, guarded by the last observed entity tag.
//
// A concurrent change on the server fails with an error matching
// api.ErrStaleElement. Nothing is retried; Load and try again.
func (r *resource) ModifyAttribute(ctx context.Context, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return api.ErrElementDeleted
	}

	if r.data == nil {
		err := r.loadLocked(ctx)
		if err != nil {
			return err
		}
	}

	doc := util.MergeMap(r.data, fields)

	// Send the request
	resp, err := r.conn.Fetch(ctx, &Request{Method: http.MethodPut, Href: r.handle.href, Body: doc, ETag: r.etag})
	if err != nil {
		if errors.Is(err, api.ErrStaleElement) {
			r.logger().Warn("Rejected stale update", logger.Ctx{"etag": r.etag})
		}

		return fmt.Errorf("Failed updating %q: %w", r.handle.href, err)
	}

	if len(resp.JSON) > 0 {
		updated := map[string]any{}
		err = json.Unmarshal(resp.JSON, &updated)
		if err != nil {
			r.logger().Warn("Failed decoding updated representation, keeping local copy", logger.Ctx{"err": err})
		} else {
			delete(updated, "link")
			doc = updated
		}
	}

	r.data = doc
	r.fresh = false
	r.links = nil
	if resp.ETag != "" {
		r.etag = resp.ETag
	}

	return nil
}

// Delete removes the resource on the server. Every later call on it fails
// with api.ErrElementDeleted.
func (r *resource) Delete(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return api.ErrElementDeleted
	}

	// Send the request
	_, err := r.conn.Fetch(ctx, &Request{Method: http.MethodDelete, Href: r.handle.href, ETag: r.etag})
	if err != nil {
		return fmt.Errorf("Failed deleting %q: %w", r.handle.href, err)
	}

	r.deleted = true
	r.fresh = false
	r.data = nil
	r.links = nil

	r.logger().Info("Deleted element")

	return nil
}

// invalidate drops the cached links after a server side action.
func (r *resource) invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fresh = false
	r.links = nil
}

func isAttributeNotPresent(err error) bool {
	var absent *api.AttributeNotPresentError
	return errors.As(err, &absent)
}

// decodeDocument fills target from a decoded JSON value using json field names.
func decodeDocument(doc any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(doc)
}
