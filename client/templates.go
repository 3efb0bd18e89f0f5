package smc

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/fvbommel/sortorder"

	"github.com/smcgo/smc/shared/api"
)

// Element kinds with an embedded creation template.
const (
	KindHost         = "host"
	KindNetwork      = "network"
	KindAddressRange = "address_range"
	KindRouter       = "router"
	KindGroup        = "group"
	KindTCPService   = "tcp_service"
	KindUDPService   = "udp_service"
)

//go:embed templates/*.json
var templateFS embed.FS

// TemplateLoader returns the base document used to create an element kind.
type TemplateLoader interface {
	LoadTemplate(kind string) (map[string]any, error)
}

// EmbeddedTemplates serves the templates compiled into the binary.
type EmbeddedTemplates struct{}

// LoadTemplate returns a fresh copy of the template for kind.
func (EmbeddedTemplates) LoadTemplate(kind string) (map[string]any, error) {
	content, err := templateFS.ReadFile(path.Join("templates", kind+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("No template for element kind %q: %w", kind, api.ErrNotFound)
		}

		return nil, err
	}

	doc := map[string]any{}
	err = json.Unmarshal(content, &doc)
	if err != nil {
		return nil, fmt.Errorf("Failed parsing template %q: %w", kind, err)
	}

	return doc, nil
}

// Kinds lists the element kinds a template exists for.
func (EmbeddedTemplates) Kinds() []string {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil
	}

	kinds := make([]string, 0, len(entries))
	for _, entry := range entries {
		kinds = append(kinds, strings.TrimSuffix(entry.Name(), ".json"))
	}

	slices.SortFunc(kinds, func(a, b string) int {
		if sortorder.NaturalLess(a, b) {
			return -1
		}

		if sortorder.NaturalLess(b, a) {
			return 1
		}

		return 0
	})

	return kinds
}

// LoadTemplate returns the embedded template for kind.
func (r *ProtocolSMC) LoadTemplate(kind string) (map[string]any, error) {
	return EmbeddedTemplates{}.LoadTemplate(kind)
}
