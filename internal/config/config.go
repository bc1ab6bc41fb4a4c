// Package config loads the TOML definitions document that drives the report
// engine: field definitions, report definitions, and named sets grouping
// them for selection as a unit.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/vporokh/go-tank-metrics/internal/reports"
)

// FieldDef is one [fields.<id>] table.
type FieldDef struct {
	Metric  string `toml:"metric"`
	Fields  string `toml:"fields,omitempty"`
	Format  string `toml:"format,omitempty"`
	Filter  string `toml:"filter,omitempty"`
	FilterB string `toml:"filter_b,omitempty"`
}

// ReportDef is one [reports.<id>] table.
type ReportDef struct {
	Type       string    `toml:"type"`
	Title      string    `toml:"title,omitempty"`
	Field      string    `toml:"field,omitempty"`
	Filter     string    `toml:"filter,omitempty"`
	Labels     []string  `toml:"labels,omitempty"`
	Boundaries []float64 `toml:"boundaries,omitempty"`
}

// Document is the parsed definitions document.
type Document struct {
	Fields     map[string]FieldDef  `toml:"fields"`
	Reports    map[string]ReportDef `toml:"reports"`
	FieldSets  map[string][]string  `toml:"field_sets"`
	ReportSets map[string][]string  `toml:"report_sets"`
}

// Load reads a definitions document. An empty path loads the built-in
// defaults so the tool runs without any configuration file.
func Load(path string) (*Document, error) {
	if path == "" {
		return Parse([]byte(defaultDocument))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a TOML definitions document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode definitions: %w", err)
	}
	return &doc, nil
}

// Marshal renders the document back to TOML. A document round-tripped
// through Marshal and Parse reproduces equivalent definitions.
func (d *Document) Marshal() ([]byte, error) {
	return toml.Marshal(d)
}

// fieldSet resolves a set name to an ordered id list. The empty name means
// "default"; a set that doesn't exist is a configuration error, but unknown
// ids inside a set are skipped with a warning (never fatal).
func resolveSet(sets map[string][]string, name, kind string) ([]string, error) {
	if name == "" {
		name = "default"
	}
	ids, ok := sets[name]
	if !ok {
		known := make([]string, 0, len(sets))
		for k := range sets {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown %s set %q (have %v)", kind, name, known)
	}
	return ids, nil
}

// BuildFields constructs the report fields named by a field set, in set
// order, through the metric factory registry.
func (d *Document) BuildFields(setName string, factories map[string]reports.FieldFactory, logger zerolog.Logger) ([]reports.ReportField, error) {
	ids, err := resolveSet(d.FieldSets, setName, "field")
	if err != nil {
		return nil, err
	}

	fields := make([]reports.ReportField, 0, len(ids))
	for _, id := range ids {
		def, ok := d.Fields[id]
		if !ok {
			logger.Warn().Str("field", id).Msg("set references unknown field, skipping")
			continue
		}
		f, err := reports.NewField(factories, reports.FieldSpec{
			Key:     id,
			Metric:  def.Metric,
			Fields:  def.Fields,
			Format:  def.Format,
			Filter:  def.Filter,
			FilterB: def.FilterB,
		})
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("field set %q selects no usable fields", setName)
	}
	return fields, nil
}

// BuildReports constructs the categorizations named by a report set, in set
// order, through the classifier factory registry.
func (d *Document) BuildReports(setName string, factories map[string]reports.CategorizationFactory, logger zerolog.Logger) ([]reports.Categorization, error) {
	ids, err := resolveSet(d.ReportSets, setName, "report")
	if err != nil {
		return nil, err
	}

	cats := make([]reports.Categorization, 0, len(ids))
	for _, id := range ids {
		def, ok := d.Reports[id]
		if !ok {
			logger.Warn().Str("report", id).Msg("set references unknown report, skipping")
			continue
		}
		c, err := reports.NewCategorization(factories, reports.ReportSpec{
			Key:        id,
			Type:       def.Type,
			Title:      def.Title,
			Field:      def.Field,
			Filter:     def.Filter,
			Labels:     def.Labels,
			Boundaries: def.Boundaries,
		}, logger)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("report set %q selects no usable reports", setName)
	}
	return cats, nil
}

// defaultDocument is the built-in definitions document.
const defaultDocument = `
[fields.battles]
metric = "count"
format = "%.0f"

[fields.wr]
metric = "average"
fields = "win"
format = "%.2f"

[fields.dpb]
metric = "average"
fields = "damage_made"
format = "%.0f"

[fields.kpb]
metric = "average"
fields = "kills"
format = "%.2f"

[fields.surv]
metric = "average"
fields = "survived"
format = "%.2f"

[fields.acc]
metric = "ratio"
fields = "hits/shots"
format = "%.2f"

[fields.awr]
metric = "average"
fields = "player.wr"
filter = "allies-all"
format = "%.1f"

[fields.ewr]
metric = "average"
fields = "player.wr"
filter = "enemies"
format = "%.1f"

[fields.wr_diff]
metric = "difference"
fields = "player.wr"
filter = "allies-all"
filter_b = "enemies"
format = "%+.1f"

[reports.total]
type = "total"
title = "All battles"

[reports.result]
type = "category"
field = "result"
title = "By result"
labels = ["Loss", "Win", "Draw"]

[reports.tier]
type = "number"
field = "battle_tier"
title = "By battle tier"

[reports.class]
type = "string"
field = "class"
title = "By vehicle class"

[reports.map]
type = "string"
field = "map"
title = "By map"

[reports.ewr_bucket]
type = "bucket"
field = "player.wr"
filter = "enemies"
title = "By enemy average win rate"
boundaries = [0.0, 45.0, 50.0, 55.0, 65.0]
labels = ["under 45%", "45-50%", "50-55%", "55-65%", "65% and up"]

[field_sets]
default = ["battles", "wr", "dpb", "kpb", "surv", "acc", "awr", "ewr", "wr_diff"]
minimal = ["battles", "wr", "dpb"]

[report_sets]
default = ["total", "result", "tier", "class", "map", "ewr_bucket"]
minimal = ["total"]
`
