package reports

import (
	"github.com/vporokh/go-tank-metrics/internal/model"
)

// Report is one configured report: a classifier plus its category buckets,
// created lazily as replays land in them.
type Report struct {
	Classifier Categorization
	categories map[string]*Category
}

func newReport(c Categorization) *Report {
	return &Report{Classifier: c, categories: map[string]*Category{}}
}

// category returns the bucket for a key, creating it on first use.
func (rp *Report) category(key string) *Category {
	cat, ok := rp.categories[key]
	if !ok {
		cat = newCategory(key)
		rp.categories[key] = cat
	}
	return cat
}

// Categories returns the observed buckets in the classifier's display order.
func (rp *Report) Categories() []*Category {
	observed := make([]string, 0, len(rp.categories))
	for key := range rp.categories {
		observed = append(observed, key)
	}
	out := make([]*Category, 0, len(observed))
	for _, key := range rp.Classifier.DisplayOrder(observed) {
		out = append(out, rp.categories[key])
	}
	return out
}

// Engine folds enriched replays into every configured report.
type Engine struct {
	fields  []ReportField
	reports []*Report
}

// NewEngine wires configured fields and classifiers into a report engine.
func NewEngine(fields []ReportField, classifiers []Categorization) *Engine {
	e := &Engine{fields: fields}
	for _, c := range classifiers {
		e.reports = append(e.reports, newReport(c))
	}
	return e
}

// Fields returns the configured fields in column order.
func (e *Engine) Fields() []ReportField { return e.fields }

// Reports returns the configured reports in display order.
func (e *Engine) Reports() []*Report { return e.reports }

// AddReplay is the central fold: resolve the replay's category in every
// report (skipping reports whose classifier excludes it), then compute each
// field's contribution once and merge it into every matched bucket.
func (e *Engine) AddReplay(r *model.EnrichedReplay) {
	matched := make([]*Category, 0, len(e.reports))
	for _, rp := range e.reports {
		key, ok := rp.Classifier.GetCategory(r)
		if !ok {
			continue
		}
		matched = append(matched, rp.category(key))
	}
	if len(matched) == 0 {
		return
	}

	for _, f := range e.fields {
		value, n, ok := f.Calc(r)
		if !ok {
			continue
		}
		for _, cat := range matched {
			f.Merge(cat.Store(f.Key()), value, n)
		}
	}
}

// cell renders one (category, field) cell, preferring the textual side-table.
func cell(cat *Category, f ReportField) string {
	if s, ok := cat.Text(f.Key()); ok {
		return s
	}
	vs, ok := cat.Peek(f.Key())
	if !ok {
		return "-"
	}
	return f.Print(*vs)
}
