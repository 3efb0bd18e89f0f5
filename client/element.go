package smc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/smcgo/smc/shared/api"
)

// Element is a named top-level configuration object.
//
// Its representation is fetched lazily, at most once until a mutation
// invalidates it.
type Element struct {
	*resource
}

// GetElement resolves an element by name. The lookup happens right away so
// a missing element fails here rather than on first use.
func GetElement(ctx context.Context, conn Connection, typ string, name string) (*Element, error) {
	href, err := conn.Resolve(ctx, name, typ)
	if err != nil {
		return nil, fmt.Errorf("Failed resolving %s %q: %w", typ, name, err)
	}

	return NewElement(conn, NewHandle(href, typ, name)), nil
}

// NewElement wraps an already known handle without fetching anything.
func NewElement(conn Connection, handle Handle) *Element {
	return &Element{resource: newResource(conn, handle)}
}

// ElementFromHref wraps the element at href without fetching anything.
func ElementFromHref(conn Connection, href string, typ string) *Element {
	return NewElement(conn, NewHandle(href, typ, ""))
}

// Name returns the element name, from the cached representation or the handle.
func (e *Element) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	name, ok := e.data["name"].(string)
	if ok {
		return name
	}

	return e.handle.name
}

// Comment returns the element comment.
func (e *Element) Comment(ctx context.Context) (string, error) {
	return e.StringAttribute(ctx, "comment")
}

// Rename changes the element name.
func (e *Element) Rename(ctx context.Context, name string) error {
	return e.ModifyAttribute(ctx, map[string]any{"name": name})
}

// Export starts an export of this element, returning the export task.
func (e *Element) Export(ctx context.Context) (*Task, error) {
	href, err := e.feature(ctx, "export")
	if err != nil {
		return nil, err
	}

	resp, err := e.conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: href})
	if err != nil {
		return nil, err
	}

	return StartTask(e.conn, resp)
}

// References returns the elements referring to this one.
func (e *Element) References(ctx context.Context) ([]api.ElementEntry, error) {
	href, err := e.feature(ctx, "search_category_tags_from_element")
	if err != nil {
		return nil, err
	}

	resp, err := get(ctx, e.conn, href, nil)
	if err != nil {
		return nil, err
	}

	return decodeEntries(resp)
}

// SubElement is a resource only reachable through a parent's links.
// It has no name lookup, only an href.
type SubElement struct {
	*resource
}

// NewSubElement wraps the resource at href without fetching anything.
func NewSubElement(conn Connection, href string, typ string) *SubElement {
	return &SubElement{resource: newResource(conn, NewHandle(href, typ, ""))}
}

// subElementFromEntry wraps a collection entry.
func subElementFromEntry(conn Connection, entry api.ElementEntry) *SubElement {
	return &SubElement{resource: newResource(conn, HandleFromEntry(entry))}
}

// Name returns the name of the sub-element, from the cached representation or its collection entry.
func (s *SubElement) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.data["name"].(string)
	if ok {
		return name
	}

	return s.handle.name
}

// Collection is a list resource children get created in.
type Collection struct {
	conn Connection
	href string
	kind string
}

// NewCollection wraps the collection at href.
func NewCollection(conn Connection, href string, kind string) *Collection {
	return &Collection{conn: conn, href: href, kind: kind}
}

// Href returns the location of the collection.
func (c *Collection) Href() string {
	return c.href
}

// Entries lists the members of the collection.
func (c *Collection) Entries(ctx context.Context) ([]api.ElementEntry, error) {
	resp, err := get(ctx, c.conn, c.href, nil)
	if err != nil {
		return nil, fmt.Errorf("Failed listing %q: %w", c.href, err)
	}

	entries, err := decodeEntries(resp)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].Type == "" {
			entries[i].Type = c.kind
		}
	}

	return entries, nil
}

// All returns handles on all the members of the collection. Nothing is loaded.
func (c *Collection) All(ctx context.Context) ([]*SubElement, error) {
	entries, err := c.Entries(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*SubElement, 0, len(entries))
	for _, entry := range entries {
		out = append(out, subElementFromEntry(c.conn, entry))
	}

	return out, nil
}

// Create posts a new child document and returns a handle on it.
// The child isn't loaded.
func (c *Collection) Create(ctx context.Context, doc any) (*SubElement, error) {
	resp, err := c.conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: c.href, Body: doc})
	if err != nil {
		return nil, fmt.Errorf("Failed creating in %q: %w", c.href, err)
	}

	if resp.Href == "" || resp.Href == c.href {
		return nil, fmt.Errorf("Server didn't return the location of the new %s", c.kind)
	}

	return NewSubElement(c.conn, resp.Href, c.kind), nil
}
