package smc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/smcgo/smc/shared/api"
)

// SearchArgs narrows a search.
type SearchArgs struct {
	// Filter is matched against element names. "*" is a wildcard.
	Filter string

	// Context restricts the element types, e.g. "host", "network_elements" or "engine_clusters".
	Context string

	// ExactMatch requires the whole name to match.
	ExactMatch bool
}

// Search lists the elements matching args.
func (r *ProtocolSMC) Search(ctx context.Context, args SearchArgs) ([]api.ElementEntry, error) {
	href, err := r.EntryPoint(ctx, "elements")
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	if args.Filter != "" {
		params.Set("filter", args.Filter)
	}

	if args.Context != "" {
		params.Set("filter_context", args.Context)
	}

	if args.ExactMatch {
		params.Set("exact_match", strconv.FormatBool(true))
	}

	resp, err := get(ctx, r, href, params)
	if err != nil {
		return nil, err
	}

	return decodeEntries(resp)
}

// Resolve returns the href of the element with the given name.
func (r *ProtocolSMC) Resolve(ctx context.Context, name string, typeHint string) (string, error) {
	entries, err := r.Search(ctx, SearchArgs{Filter: name, Context: typeHint, ExactMatch: true})
	if err != nil {
		return "", err
	}

	switch len(entries) {
	case 0:
		return "", api.StatusErrorf(http.StatusNotFound, "No results found for %q", name)
	case 1:
		return entries[0].Href, nil
	default:
		return "", fmt.Errorf("More than one element named %q, try filtering on the element type", name)
	}
}

// decodeEntries accepts both bare lists and result envelopes.
func decodeEntries(resp *Result) ([]api.ElementEntry, error) {
	if len(resp.JSON) == 0 {
		return []api.ElementEntry{}, nil
	}

	entries := []api.ElementEntry{}
	err := json.Unmarshal(resp.JSON, &entries)
	if err == nil {
		return entries, nil
	}

	list := api.ElementList{}
	err = json.Unmarshal(resp.JSON, &list)
	if err != nil {
		return nil, fmt.Errorf("Failed decoding element list: %w", err)
	}

	if list.Result == nil {
		return []api.ElementEntry{}, nil
	}

	return list.Result, nil
}
