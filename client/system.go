package smc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/smcgo/smc/shared/api"
)

// ExportTypes are the element groups accepted by System.ExportElements.
var ExportTypes = []string{"all", "nw", "ips", "sv", "rb", "al", "vpn"}

// System exposes the management server level operations.
type System struct {
	*SubElement
}

// GetSystem returns the system resource of the management server.
func GetSystem(ctx context.Context, conn Connection) (*System, error) {
	href, err := conn.EntryPoint(ctx, "system")
	if err != nil {
		return nil, err
	}

	return &System{SubElement: NewSubElement(conn, href, "system")}, nil
}

// value fetches a single value document behind a relation.
func (s *System) value(ctx context.Context, rel string) (string, error) {
	href, err := s.feature(ctx, rel)
	if err != nil {
		return "", err
	}

	resp, err := get(ctx, s.conn, href, nil)
	if err != nil {
		return "", err
	}

	entry := api.ValueEntry{}
	err = resp.Decode(&entry)
	if err != nil {
		return "", err
	}

	switch v := entry.Value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("Unexpected value type %T for %q", entry.Value, rel)
	}
}

// Version returns the version of the management server.
func (s *System) Version(ctx context.Context) (string, error) {
	return s.value(ctx, "smc_version")
}

// Time returns the current time of the management server.
func (s *System) Time(ctx context.Context) (string, error) {
	return s.value(ctx, "smc_time")
}

// LastActivatedPackage returns the id of the last activated dynamic update.
func (s *System) LastActivatedPackage(ctx context.Context) (string, error) {
	return s.value(ctx, "last_activated_package")
}

// EmptyTrashBin permanently removes the deleted elements.
func (s *System) EmptyTrashBin(ctx context.Context) error {
	href, err := s.feature(ctx, "empty_trash_bin")
	if err != nil {
		return err
	}

	_, err = s.conn.Fetch(ctx, &Request{Method: http.MethodDelete, Href: href})
	if err != nil {
		return fmt.Errorf("Failed emptying the trash bin: %w", err)
	}

	return nil
}

// Blacklist adds a blacklist entry on all the engines.
func (s *System) Blacklist(ctx context.Context, src string, dst string, duration int) error {
	href, err := s.feature(ctx, "blacklist")
	if err != nil {
		return err
	}

	_, err = s.conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: href, Body: api.BlacklistEntry(src, dst, duration)})
	if err != nil {
		return fmt.Errorf("Failed adding blacklist entry: %w", err)
	}

	return nil
}

// ExportElements starts exporting a group of elements, see ExportTypes.
// Download the archive from the returned task once it succeeded.
func (s *System) ExportElements(ctx context.Context, typ string) (*Task, error) {
	if typ == "" {
		typ = "all"
	}

	if !slices.Contains(ExportTypes, typ) {
		return nil, &api.ValidationError{Field: "type", Value: typ, Allowed: ExportTypes}
	}

	href, err := s.feature(ctx, "export_elements")
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("recursive", "true")
	params.Set("type", typ)

	resp, err := s.conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: href, Params: params})
	if err != nil {
		return nil, fmt.Errorf("Failed exporting elements: %w", err)
	}

	return StartTask(s.conn, resp)
}

// ReferencesByElement lists the elements referencing href.
func (s *System) ReferencesByElement(ctx context.Context, href string) ([]api.ElementEntry, error) {
	rel, err := s.feature(ctx, "references_by_element")
	if err != nil {
		return nil, err
	}

	resp, err := s.conn.Fetch(ctx, &Request{Method: http.MethodPost, Href: rel, Body: api.ValueEntry{Value: href}})
	if err != nil {
		return nil, err
	}

	if len(resp.JSON) == 0 {
		return []api.ElementEntry{}, nil
	}

	return decodeEntries(resp)
}
