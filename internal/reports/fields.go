// Package reports implements the report engine: composable field metrics,
// replay categorizations, the aggregation fold and table rendering.
package reports

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vporokh/go-tank-metrics/internal/model"
)

// ValueStore is the running (value, count) accumulator for one
// (field, category) pair. Created lazily on first write, never reset.
type ValueStore struct {
	Value float64
	N     float64
}

// Add accumulates one contribution.
func (v *ValueStore) Add(value, n float64) {
	v.Value += value
	v.N += n
}

// ReportField is one configured metric. Calc extracts the replay's
// contribution once; Merge folds it into a cell; Value collapses a cell for
// rendering.
type ReportField interface {
	Key() string
	// Calc returns the replay's contribution. ok=false means the replay
	// contributes nothing to this field (never an error).
	Calc(r *model.EnrichedReplay) (value, n float64, ok bool)
	Merge(vs *ValueStore, value, n float64)
	Value(vs ValueStore) float64
	Print(vs ValueStore) string
}

// FieldSpec is the configuration-time description of a field.
type FieldSpec struct {
	Key     string
	Metric  string
	Fields  string // attribute spec: "attr", "player.attr", "num/den", "attr>const"
	Format  string // fmt verb, e.g. "%.1f"
	Filter  string // player filter, e.g. "allies-top"; empty = whole replay
	FilterB string // second filter, difference metric only
}

// FieldFactory constructs one metric kind from its spec.
type FieldFactory func(FieldSpec) (ReportField, error)

// NewFieldFactories returns the metric registry: tag -> constructor. Built at
// startup and passed to the config layer explicitly.
func NewFieldFactories() map[string]FieldFactory {
	return map[string]FieldFactory{
		"count":      newCountField,
		"sum":        newSumField,
		"average":    newAverageField,
		"average_if": newAverageIfField,
		"min":        newMinField,
		"max":        newMaxField,
		"ratio":      newRatioField,
		"difference": newDifferenceField,
	}
}

// NewField dispatches a spec through the factory registry.
func NewField(factories map[string]FieldFactory, spec FieldSpec) (ReportField, error) {
	factory, ok := factories[spec.Metric]
	if !ok {
		return nil, fmt.Errorf("field %q: unsupported metric %q", spec.Key, spec.Metric)
	}
	f, err := factory(spec)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", spec.Key, err)
	}
	return f, nil
}

// fieldBase carries the pieces every metric shares: identity, format, and the
// optional player filter. Merge is additive by default.
type fieldBase struct {
	key       string
	format    string
	filter    model.PlayerFilter
	hasFilter bool
}

func newFieldBase(spec FieldSpec) (fieldBase, error) {
	b := fieldBase{key: spec.Key, format: spec.Format}
	if b.format == "" {
		b.format = "%.1f"
	}
	if spec.Filter != "" {
		b.filter = model.ParsePlayerFilter(spec.Filter)
		if !b.filter.Valid() {
			return b, fmt.Errorf("bad filter %q", spec.Filter)
		}
		b.hasFilter = true
	}
	return b, nil
}

func (b *fieldBase) Key() string { return b.key }

func (b *fieldBase) Merge(vs *ValueStore, value, n float64) {
	vs.Add(value, n)
}

func (b *fieldBase) sprint(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "-"
	}
	return fmt.Sprintf(b.format, v)
}

// attribute resolution -------------------------------------------------------

// attribute is a resolved accessor: replay-level, or player-level over the
// configured filter.
type attribute struct {
	name   string
	replay func(r *model.EnrichedReplay) float64
	player func(r *model.EnrichedReplay, p *model.PlayerPerformance) float64
}

func (a attribute) isPlayer() bool { return a.player != nil }

// resolveAttr validates an attribute name against the closed whitelists. A
// "player."-prefixed attribute without a configured filter is a
// construction-time error, never a runtime one.
func resolveAttr(name string, hasFilter bool) (attribute, error) {
	if trimmed, ok := strings.CutPrefix(name, "player."); ok {
		acc, found := playerAttrs[trimmed]
		if !found {
			return attribute{}, fmt.Errorf("unknown player attribute %q", name)
		}
		if !hasFilter {
			return attribute{}, fmt.Errorf("player attribute %q requires a filter", name)
		}
		return attribute{name: name, player: acc}, nil
	}
	acc, found := replayAttrs[name]
	if !found {
		return attribute{}, fmt.Errorf("unknown replay attribute %q", name)
	}
	return attribute{name: name, replay: acc}, nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// replayAttrs is the closed whitelist of replay-level numeric attributes.
// These read the analyzed player's own record plus replay-level facts.
var replayAttrs = map[string]func(r *model.EnrichedReplay) float64{
	"battles":         func(r *model.EnrichedReplay) float64 { return 1 },
	"win":             func(r *model.EnrichedReplay) float64 { return b2f(r.Result == model.ResultWin) },
	"result":          func(r *model.EnrichedReplay) float64 { return float64(r.Result) },
	"loss":            func(r *model.EnrichedReplay) float64 { return b2f(r.Result == model.ResultLoss) },
	"draw":            func(r *model.EnrichedReplay) float64 { return b2f(r.Result == model.ResultDraw) },
	"duration":        func(r *model.EnrichedReplay) float64 { return r.Duration },
	"battle_tier":     func(r *model.EnrichedReplay) float64 { return float64(r.BattleTier) },
	"top_tier":        func(r *model.EnrichedReplay) float64 { return b2f(r.TopTier) },
	"plat_mate":       func(r *model.EnrichedReplay) float64 { return b2f(r.PlatMate != 0) },
	"allies_count":    func(r *model.EnrichedReplay) float64 { return float64(len(r.Allies)) },
	"enemies_count":   func(r *model.EnrichedReplay) float64 { return float64(len(r.Enemies)) },
	"survived":        func(r *model.EnrichedReplay) float64 { return b2f(r.Performance().Survived) },
	"damage_made":     func(r *model.EnrichedReplay) float64 { return float64(r.Performance().DamageDealt) },
	"damage_assisted": func(r *model.EnrichedReplay) float64 { return float64(r.Performance().DamageAssisted) },
	"damage_received": func(r *model.EnrichedReplay) float64 { return float64(r.Performance().DamageReceived) },
	"kills":           func(r *model.EnrichedReplay) float64 { return float64(r.Performance().Kills) },
	"spotted":         func(r *model.EnrichedReplay) float64 { return float64(r.Performance().Spotted) },
	"shots":           func(r *model.EnrichedReplay) float64 { return float64(r.Performance().Shots) },
	"hits":            func(r *model.EnrichedReplay) float64 { return float64(r.Performance().Hits) },
	"hit_rate":        func(r *model.EnrichedReplay) float64 { return r.Performance().HitRate() },
	"exp":             func(r *model.EnrichedReplay) float64 { return float64(r.Performance().XP) },
	"credits":         func(r *model.EnrichedReplay) float64 { return float64(r.Performance().Credits) },
}

// playerAttrs is the closed whitelist of player-level attributes, addressed
// with the "player." prefix and always evaluated over a filter.
var playerAttrs = map[string]func(r *model.EnrichedReplay, p *model.PlayerPerformance) float64{
	"damage_made":     func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.DamageDealt) },
	"damage_assisted": func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.DamageAssisted) },
	"damage_received": func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.DamageReceived) },
	"kills":           func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.Kills) },
	"spotted":         func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.Spotted) },
	"shots":           func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.Shots) },
	"hits":            func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.Hits) },
	"hit_rate":        func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return p.HitRate() },
	"exp":             func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.XP) },
	"credits":         func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.Credits) },
	"survived":        func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return b2f(p.Survived) },
	"tier":            func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.Vehicle.Tier) },
	"premium":         func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return b2f(p.Vehicle.Premium) },
	"wr":              func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return p.Stats.WinRate },
	"avg_dmg":         func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return p.Stats.AvgDamage },
	"battles":         func(_ *model.EnrichedReplay, p *model.PlayerPerformance) float64 { return float64(p.Stats.Battles) },
}

// values extracts the attribute's sample list for one replay: either the
// single replay-level value, or one value per filtered player.
func (b *fieldBase) values(attr attribute, r *model.EnrichedReplay) []float64 {
	if !attr.isPlayer() && !b.hasFilter {
		return []float64{attr.replay(r)}
	}
	ids := b.filter.Players(r)
	out := make([]float64, 0, len(ids))
	for _, id := range ids {
		p, ok := r.Performances[id]
		if !ok {
			continue
		}
		if attr.isPlayer() {
			out = append(out, attr.player(r, p))
		} else {
			out = append(out, attr.replay(r))
		}
	}
	return out
}

// count ----------------------------------------------------------------------

type countField struct {
	fieldBase
}

func newCountField(spec FieldSpec) (ReportField, error) {
	base, err := newFieldBase(spec)
	if err != nil {
		return nil, err
	}
	return &countField{fieldBase: base}, nil
}

func (f *countField) Calc(r *model.EnrichedReplay) (float64, float64, bool) {
	if !f.hasFilter {
		return 1, 1, true
	}
	n := float64(len(f.filter.Players(r)))
	return n, n, true
}

func (f *countField) Value(vs ValueStore) float64 { return vs.Value }

func (f *countField) Print(vs ValueStore) string { return f.sprint(f.Value(vs)) }

// sum ------------------------------------------------------------------------

type sumField struct {
	fieldBase
	attr attribute
}

func newSumField(spec FieldSpec) (ReportField, error) {
	base, err := newFieldBase(spec)
	if err != nil {
		return nil, err
	}
	attr, err := resolveAttr(spec.Fields, base.hasFilter)
	if err != nil {
		return nil, err
	}
	return &sumField{fieldBase: base, attr: attr}, nil
}

func (f *sumField) Calc(r *model.EnrichedReplay) (float64, float64, bool) {
	var sum float64
	vals := f.values(f.attr, r)
	for _, v := range vals {
		sum += v
	}
	return sum, float64(len(vals)), true
}

func (f *sumField) Value(vs ValueStore) float64 { return vs.Value }

func (f *sumField) Print(vs ValueStore) string { return f.sprint(f.Value(vs)) }

// average --------------------------------------------------------------------

type averageField struct {
	sumField
}

func newAverageField(spec FieldSpec) (ReportField, error) {
	base, err := newFieldBase(spec)
	if err != nil {
		return nil, err
	}
	attr, err := resolveAttr(spec.Fields, base.hasFilter)
	if err != nil {
		return nil, err
	}
	return &averageField{sumField{fieldBase: base, attr: attr}}, nil
}

// Value divides the accumulated sum by the sample count. A zero-count cell is
// +Inf by contract: "no data" surfaces visibly instead of crashing the run.
func (f *averageField) Value(vs ValueStore) float64 {
	if vs.N == 0 {
		return math.Inf(1)
	}
	return vs.Value / vs.N
}

func (f *averageField) Print(vs ValueStore) string { return f.sprint(f.Value(vs)) }

// average_if -----------------------------------------------------------------

type compareOp int

const (
	opEq compareOp = iota
	opGt
	opLt
)

// averageIfField averages a 0/1 indicator of "attr <op> const" instead of the
// raw attribute.
type averageIfField struct {
	fieldBase
	attr      attribute
	op        compareOp
	threshold float64
}

func newAverageIfField(spec FieldSpec) (ReportField, error) {
	base, err := newFieldBase(spec)
	if err != nil {
		return nil, err
	}
	name, op, threshold, err := parseComparison(spec.Fields)
	if err != nil {
		return nil, err
	}
	attr, err := resolveAttr(name, base.hasFilter)
	if err != nil {
		return nil, err
	}
	return &averageIfField{fieldBase: base, attr: attr, op: op, threshold: threshold}, nil
}

// parseComparison splits "attr<op>const" with op one of =, >, <.
func parseComparison(spec string) (string, compareOp, float64, error) {
	idx := strings.IndexAny(spec, "=><")
	if idx < 0 {
		return "", 0, 0, fmt.Errorf("average_if needs a comparison, got %q", spec)
	}
	var op compareOp
	switch spec[idx] {
	case '=':
		op = opEq
	case '>':
		op = opGt
	case '<':
		op = opLt
	}
	threshold, err := strconv.ParseFloat(spec[idx+1:], 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("bad comparison constant in %q: %w", spec, err)
	}
	return spec[:idx], op, threshold, nil
}

func (f *averageIfField) indicator(v float64) float64 {
	switch f.op {
	case opEq:
		return b2f(v == f.threshold)
	case opGt:
		return b2f(v > f.threshold)
	default:
		return b2f(v < f.threshold)
	}
}

func (f *averageIfField) Calc(r *model.EnrichedReplay) (float64, float64, bool) {
	var sum float64
	vals := f.values(f.attr, r)
	for _, v := range vals {
		sum += f.indicator(v)
	}
	return sum, float64(len(vals)), true
}

func (f *averageIfField) Value(vs ValueStore) float64 {
	if vs.N == 0 {
		return math.Inf(1)
	}
	return vs.Value / vs.N
}

func (f *averageIfField) Print(vs ValueStore) string { return f.sprint(f.Value(vs)) }

// min / max ------------------------------------------------------------------

type extremumField struct {
	fieldBase
	attr attribute
	max  bool
}

func newMinField(spec FieldSpec) (ReportField, error) { return newExtremumField(spec, false) }
func newMaxField(spec FieldSpec) (ReportField, error) { return newExtremumField(spec, true) }

func newExtremumField(spec FieldSpec, max bool) (ReportField, error) {
	base, err := newFieldBase(spec)
	if err != nil {
		return nil, err
	}
	attr, err := resolveAttr(spec.Fields, base.hasFilter)
	if err != nil {
		return nil, err
	}
	return &extremumField{fieldBase: base, attr: attr, max: max}, nil
}

// sentinel is the neutral element: an empty filtered set degrades to it
// instead of panicking.
func (f *extremumField) sentinel() float64 {
	if f.max {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

func (f *extremumField) better(a, b float64) float64 {
	if f.max {
		return math.Max(a, b)
	}
	return math.Min(a, b)
}

func (f *extremumField) Calc(r *model.EnrichedReplay) (float64, float64, bool) {
	vals := f.values(f.attr, r)
	if len(vals) == 0 {
		return 0, 0, false
	}
	best := f.sentinel()
	for _, v := range vals {
		best = f.better(best, v)
	}
	return best, float64(len(vals)), true
}

// Merge keeps the running extremum instead of summing.
func (f *extremumField) Merge(vs *ValueStore, value, n float64) {
	if vs.N == 0 {
		vs.Value = value
	} else {
		vs.Value = f.better(vs.Value, value)
	}
	vs.N += n
}

func (f *extremumField) Value(vs ValueStore) float64 {
	if vs.N == 0 {
		return f.sentinel()
	}
	return vs.Value
}

func (f *extremumField) Print(vs ValueStore) string { return f.sprint(f.Value(vs)) }

// ratio ----------------------------------------------------------------------

// ratioField accumulates numerator and denominator sums independently; the
// division happens only at render time. Each side may be replay- or
// player-level on its own, and each side is accumulated exactly once per
// replay even when both are player-level.
type ratioField struct {
	fieldBase
	num attribute
	den attribute
}

func newRatioField(spec FieldSpec) (ReportField, error) {
	base, err := newFieldBase(spec)
	if err != nil {
		return nil, err
	}
	numName, denName, ok := strings.Cut(spec.Fields, "/")
	if !ok {
		return nil, fmt.Errorf("ratio needs \"numerator/denominator\", got %q", spec.Fields)
	}
	num, err := resolveAttr(numName, base.hasFilter)
	if err != nil {
		return nil, err
	}
	den, err := resolveAttr(denName, base.hasFilter)
	if err != nil {
		return nil, err
	}
	return &ratioField{fieldBase: base, num: num, den: den}, nil
}

func (f *ratioField) side(attr attribute, r *model.EnrichedReplay) float64 {
	var sum float64
	for _, v := range f.values(attr, r) {
		sum += v
	}
	return sum
}

func (f *ratioField) Calc(r *model.EnrichedReplay) (float64, float64, bool) {
	return f.side(f.num, r), f.side(f.den, r), true
}

func (f *ratioField) Value(vs ValueStore) float64 {
	if vs.N == 0 {
		return math.Inf(1)
	}
	return vs.Value / vs.N
}

func (f *ratioField) Print(vs ValueStore) string { return f.sprint(f.Value(vs)) }

// difference -----------------------------------------------------------------

// differenceField is the average of one attribute over filter A minus its
// average over filter B, accumulated per replay. A replay where either side
// matches nobody contributes nothing; a cell that never received a
// contribution renders as the "-" placeholder rather than +Inf.
type differenceField struct {
	fieldBase
	attr    attribute
	filterB model.PlayerFilter
}

func newDifferenceField(spec FieldSpec) (ReportField, error) {
	base, err := newFieldBase(spec)
	if err != nil {
		return nil, err
	}
	if !base.hasFilter {
		return nil, fmt.Errorf("difference requires a primary filter")
	}
	filterB := model.ParsePlayerFilter(spec.FilterB)
	if spec.FilterB == "" || !filterB.Valid() {
		return nil, fmt.Errorf("difference requires a valid second filter, got %q", spec.FilterB)
	}
	attr, err := resolveAttr(spec.Fields, true)
	if err != nil {
		return nil, err
	}
	return &differenceField{fieldBase: base, attr: attr, filterB: filterB}, nil
}

func (f *differenceField) sideAverage(filter model.PlayerFilter, r *model.EnrichedReplay) (float64, bool) {
	ids := filter.Players(r)
	if len(ids) == 0 {
		return 0, false
	}
	var sum float64
	var n int
	for _, id := range ids {
		p, ok := r.Performances[id]
		if !ok {
			continue
		}
		if f.attr.isPlayer() {
			sum += f.attr.player(r, p)
		} else {
			sum += f.attr.replay(r)
		}
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (f *differenceField) Calc(r *model.EnrichedReplay) (float64, float64, bool) {
	a, okA := f.sideAverage(f.filter, r)
	b, okB := f.sideAverage(f.filterB, r)
	if !okA || !okB {
		return 0, 0, false
	}
	return a - b, 1, true
}

func (f *differenceField) Value(vs ValueStore) float64 {
	if vs.N == 0 {
		return math.NaN()
	}
	return vs.Value / vs.N
}

func (f *differenceField) Print(vs ValueStore) string { return f.sprint(f.Value(vs)) }
