package reports

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vporokh/go-tank-metrics/internal/model"
)

// Category is one bucket of one report: a lazy ValueStore per field, plus a
// string side-table for fields that happen to print as text.
type Category struct {
	Key    string
	stores map[string]*ValueStore
	texts  map[string]string
}

func newCategory(key string) *Category {
	return &Category{
		Key:    key,
		stores: map[string]*ValueStore{},
		texts:  map[string]string{},
	}
}

// Store returns the accumulator cell for a field, creating it on first use.
func (c *Category) Store(fieldKey string) *ValueStore {
	vs, ok := c.stores[fieldKey]
	if !ok {
		vs = &ValueStore{}
		c.stores[fieldKey] = vs
	}
	return vs
}

// Peek returns the cell only if it has ever been written.
func (c *Category) Peek(fieldKey string) (*ValueStore, bool) {
	vs, ok := c.stores[fieldKey]
	return vs, ok
}

// RecordText overwrites the textual value for a field.
func (c *Category) RecordText(fieldKey, value string) {
	c.texts[fieldKey] = value
}

// Text returns the textual value for a field, if one was recorded.
func (c *Category) Text(fieldKey string) (string, bool) {
	s, ok := c.texts[fieldKey]
	return s, ok
}

// Categorization maps an enriched replay to a named category bucket.
// ok=false excludes the replay from the report entirely.
type Categorization interface {
	Key() string
	Title() string
	GetCategory(r *model.EnrichedReplay) (string, bool)
	// DisplayOrder orders the observed category keys for rendering.
	DisplayOrder(observed []string) []string
}

// ReportSpec is the configuration-time description of a report classifier.
type ReportSpec struct {
	Key        string
	Type       string
	Title      string
	Field      string
	Filter     string
	Labels     []string
	Boundaries []float64
}

// CategorizationFactory constructs one classifier kind from its spec.
type CategorizationFactory func(ReportSpec, zerolog.Logger) (Categorization, error)

// NewCategorizationFactories returns the classifier registry: tag ->
// constructor. Built at startup and passed to the config layer explicitly.
func NewCategorizationFactories() map[string]CategorizationFactory {
	return map[string]CategorizationFactory{
		"total":    newTotalCategorization,
		"category": newClassCategorization,
		"number":   newNumberCategorization,
		"string":   newStringCategorization,
		"bucket":   newBucketCategorization,
	}
}

// NewCategorization dispatches a spec through the factory registry.
func NewCategorization(factories map[string]CategorizationFactory, spec ReportSpec, logger zerolog.Logger) (Categorization, error) {
	factory, ok := factories[spec.Type]
	if !ok {
		return nil, fmt.Errorf("report %q: unsupported classifier %q", spec.Key, spec.Type)
	}
	c, err := factory(spec, logger)
	if err != nil {
		return nil, fmt.Errorf("report %q: %w", spec.Key, err)
	}
	return c, nil
}

type catBase struct {
	key   string
	title string
}

func newCatBase(spec ReportSpec) catBase {
	title := spec.Title
	if title == "" {
		title = spec.Key
	}
	return catBase{key: spec.Key, title: title}
}

func (b *catBase) Key() string   { return b.key }
func (b *catBase) Title() string { return b.title }

// total ----------------------------------------------------------------------

// totalCategorization puts every replay in one "Total" bucket, for the
// grand-summary report.
type totalCategorization struct {
	catBase
}

func newTotalCategorization(spec ReportSpec, _ zerolog.Logger) (Categorization, error) {
	return &totalCategorization{newCatBase(spec)}, nil
}

func (c *totalCategorization) GetCategory(*model.EnrichedReplay) (string, bool) {
	return "Total", true
}

func (c *totalCategorization) DisplayOrder(observed []string) []string { return observed }

// category (integer-class) ---------------------------------------------------

// classCategorization reads an integer-valued attribute and maps it through a
// fixed label list by position. Categories display in reverse list order.
type classCategorization struct {
	catBase
	attr   func(r *model.EnrichedReplay) float64
	labels []string
}

func newClassCategorization(spec ReportSpec, _ zerolog.Logger) (Categorization, error) {
	attr, ok := replayAttrs[spec.Field]
	if !ok {
		return nil, fmt.Errorf("unknown replay attribute %q", spec.Field)
	}
	if len(spec.Labels) == 0 {
		return nil, fmt.Errorf("category classifier needs labels")
	}
	return &classCategorization{catBase: newCatBase(spec), attr: attr, labels: spec.Labels}, nil
}

func (c *classCategorization) GetCategory(r *model.EnrichedReplay) (string, bool) {
	idx := int(c.attr(r))
	if idx < 0 || idx >= len(c.labels) {
		return "", false
	}
	return c.labels[idx], true
}

func (c *classCategorization) DisplayOrder(observed []string) []string {
	return orderByList(reversed(c.labels), observed)
}

// number ---------------------------------------------------------------------

// numberCategorization buckets replays by the stringified numeric value of an
// attribute, one bucket per distinct observed value.
type numberCategorization struct {
	catBase
	attr func(r *model.EnrichedReplay) float64
}

func newNumberCategorization(spec ReportSpec, _ zerolog.Logger) (Categorization, error) {
	attr, ok := replayAttrs[spec.Field]
	if !ok {
		return nil, fmt.Errorf("unknown replay attribute %q", spec.Field)
	}
	return &numberCategorization{catBase: newCatBase(spec), attr: attr}, nil
}

func (c *numberCategorization) GetCategory(r *model.EnrichedReplay) (string, bool) {
	return strconv.FormatFloat(c.attr(r), 'f', -1, 64), true
}

func (c *numberCategorization) DisplayOrder(observed []string) []string {
	out := append([]string(nil), observed...)
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.ParseFloat(out[i], 64)
		b, _ := strconv.ParseFloat(out[j], 64)
		return a < b
	})
	return out
}

// string ---------------------------------------------------------------------

// replayTextAttrs is the closed whitelist of string-valued replay attributes
// usable by string classifiers.
var replayTextAttrs = map[string]func(r *model.EnrichedReplay) string{
	"map":         func(r *model.EnrichedReplay) string { return r.MapName },
	"battle_mode": func(r *model.EnrichedReplay) string { return r.BattleMode },
	"result":      func(r *model.EnrichedReplay) string { return r.Result.String() },
	"vehicle": func(r *model.EnrichedReplay) string {
		if p := r.Performance(); p.VehicleOK {
			return p.Vehicle.Name
		}
		return ""
	},
	"nation": func(r *model.EnrichedReplay) string {
		if p := r.Performance(); p.VehicleOK {
			return p.Vehicle.Nation
		}
		return ""
	},
	"class": func(r *model.EnrichedReplay) string {
		if p := r.Performance(); p.VehicleOK {
			return p.Vehicle.Class.String()
		}
		return ""
	},
}

// stringCategorization buckets replays by a string attribute; an empty value
// excludes the replay.
type stringCategorization struct {
	catBase
	attr func(r *model.EnrichedReplay) string
}

func newStringCategorization(spec ReportSpec, _ zerolog.Logger) (Categorization, error) {
	attr, ok := replayTextAttrs[spec.Field]
	if !ok {
		return nil, fmt.Errorf("unknown string attribute %q", spec.Field)
	}
	return &stringCategorization{catBase: newCatBase(spec), attr: attr}, nil
}

func (c *stringCategorization) GetCategory(r *model.EnrichedReplay) (string, bool) {
	s := c.attr(r)
	return s, s != ""
}

func (c *stringCategorization) DisplayOrder(observed []string) []string {
	out := append([]string(nil), observed...)
	sort.Strings(out)
	return out
}

// bucket ---------------------------------------------------------------------

// bucketCategorization maps a float attribute (optionally filter-averaged
// over players) into the nearest-preceding boundary of an ascending
// threshold list. Values below the lowest boundary land in the first bucket.
// Categories display in reverse threshold order.
type bucketCategorization struct {
	catBase
	attr       attribute
	filter     model.PlayerFilter
	hasFilter  bool
	boundaries []float64
	labels     []string
}

func newBucketCategorization(spec ReportSpec, logger zerolog.Logger) (Categorization, error) {
	c := &bucketCategorization{
		catBase:    newCatBase(spec),
		boundaries: spec.Boundaries,
		labels:     spec.Labels,
	}
	if spec.Filter != "" {
		c.filter = model.ParsePlayerFilter(spec.Filter)
		if !c.filter.Valid() {
			return nil, fmt.Errorf("bad filter %q", spec.Filter)
		}
		c.hasFilter = true
	}
	attr, err := resolveAttr(spec.Field, c.hasFilter)
	if err != nil {
		return nil, err
	}
	c.attr = attr

	if len(c.boundaries) == 0 {
		return nil, fmt.Errorf("bucket classifier needs boundaries")
	}
	// Tolerate slightly malformed user config: warn and trim to the shorter
	// of the two lists instead of failing startup.
	if len(c.boundaries) != len(c.labels) {
		logger.Warn().Str("report", spec.Key).
			Int("boundaries", len(c.boundaries)).Int("labels", len(c.labels)).
			Msg("bucket boundary/label length mismatch")
		n := min(len(c.boundaries), len(c.labels))
		if n == 0 {
			return nil, fmt.Errorf("bucket classifier needs labels")
		}
		c.boundaries = c.boundaries[:n]
		c.labels = c.labels[:n]
	}
	return c, nil
}

func (c *bucketCategorization) value(r *model.EnrichedReplay) (float64, bool) {
	if !c.hasFilter {
		if c.attr.isPlayer() {
			return 0, false
		}
		return c.attr.replay(r), true
	}
	ids := c.filter.Players(r)
	var sum float64
	var n int
	for _, id := range ids {
		p, ok := r.Performances[id]
		if !ok {
			continue
		}
		if c.attr.isPlayer() {
			sum += c.attr.player(r, p)
		} else {
			sum += c.attr.replay(r)
		}
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (c *bucketCategorization) GetCategory(r *model.EnrichedReplay) (string, bool) {
	v, ok := c.value(r)
	if !ok {
		return "", false
	}
	idx := 0
	for i, b := range c.boundaries {
		if v >= b {
			idx = i
		}
	}
	return c.labels[idx], true
}

func (c *bucketCategorization) DisplayOrder(observed []string) []string {
	return orderByList(reversed(c.labels), observed)
}

// helpers --------------------------------------------------------------------

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}

// orderByList returns the defined-order labels restricted to those observed.
func orderByList(defined, observed []string) []string {
	seen := make(map[string]struct{}, len(observed))
	for _, s := range observed {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(observed))
	for _, s := range defined {
		if _, ok := seen[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
