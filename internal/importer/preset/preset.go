// Package preset holds vendor-specific default column mappings.
package preset

import (
	"sort"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/importer/normalize"
)

// Preset maps vendor column names to field keys of one entity.
type Preset struct {
	Name        string              `json:"name"`
	Label       string              `json:"label"`
	Description string              `json:"description"`
	EntityType  importer.EntityType `json:"entity_type"`
	Columns     map[string]string   `json:"columns"`
}

// Apply matches the preset's columns against uploaded headers, ignoring case, accents and
// separators. The result maps source header to field key.
func (p Preset) Apply(headers []string) map[string]string {
	byCompact := make(map[string]string, len(p.Columns))
	for col, field := range p.Columns {
		byCompact[normalize.Compact(col)] = field
	}
	out := make(map[string]string)
	taken := make(map[string]bool)
	for _, h := range headers {
		field, ok := byCompact[normalize.Compact(h)]
		if !ok || taken[field] {
			continue
		}
		out[h] = field
		taken[field] = true
	}
	return out
}

var registry = map[importer.EntityType]map[string]Preset{}

func register(p Preset) {
	if registry[p.EntityType] == nil {
		registry[p.EntityType] = make(map[string]Preset)
	}
	registry[p.EntityType][p.Name] = p
}

// Get looks a preset up by entity and name.
func Get(entity importer.EntityType, name string) (Preset, bool) {
	p, ok := registry[entity][name]
	return p, ok
}

// List returns the presets of an entity sorted by name.
func List(entity importer.EntityType) []Preset {
	out := make([]Preset, 0, len(registry[entity]))
	for _, p := range registry[entity] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Merge overlays a preset mapping on an automatic one. The preset wins for any header it
// maps, and an automatic mapping to a field the preset already claimed is dropped.
func Merge(auto, preset map[string]string) map[string]string {
	claimed := make(map[string]bool, len(preset))
	for _, field := range preset {
		claimed[field] = true
	}
	out := make(map[string]string, len(auto)+len(preset))
	for h, field := range auto {
		if !claimed[field] {
			out[h] = field
		}
	}
	for h, field := range preset {
		out[h] = field
	}
	return out
}
