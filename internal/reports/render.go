package reports

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Render writes one table per report: rows are categories in the
// classifier's display order, columns the configured fields in configured
// order. Never-written cells print the "-" placeholder and zero-count
// averages print "+inf", so a multi-report run surfaces "no data" instead of
// crashing.
func (e *Engine) Render(w io.Writer) {
	bold := color.New(color.Bold)

	for _, rp := range e.reports {
		bold.Fprintf(w, "\n%s\n", rp.Classifier.Title())

		table := tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignRight},
			},
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignCenter},
			},
		}))

		header := make([]any, 0, len(e.fields)+1)
		header = append(header, "CATEGORY")
		for _, f := range e.fields {
			header = append(header, strings.ToUpper(f.Key()))
		}
		table.Header(header...)

		for _, cat := range rp.Categories() {
			row := make([]any, 0, len(e.fields)+1)
			row = append(row, cat.Key)
			for _, f := range e.fields {
				row = append(row, cell(cat, f))
			}
			table.Append(row...)
		}
		table.Render()
	}
}

// Export writes the same data as tab-delimited text: one block per report,
// preceded by the report key.
func (e *Engine) Export(w io.Writer) error {
	for _, rp := range e.reports {
		if _, err := fmt.Fprintf(w, "# %s\n", rp.Classifier.Key()); err != nil {
			return err
		}

		cols := make([]string, 0, len(e.fields)+1)
		cols = append(cols, "category")
		for _, f := range e.fields {
			cols = append(cols, f.Key())
		}
		if _, err := fmt.Fprintln(w, strings.Join(cols, "\t")); err != nil {
			return err
		}

		for _, cat := range rp.Categories() {
			row := make([]string, 0, len(e.fields)+1)
			row = append(row, cat.Key)
			for _, f := range e.fields {
				row = append(row, cell(cat, f))
			}
			if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
	}
	return nil
}
