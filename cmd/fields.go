package cmd

import (
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vporokh/go-tank-metrics/internal/config"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the configured field and report definitions",
	RunE:  runFields,
}

func runFields(cmd *cobra.Command, args []string) error {
	doc, err := config.Load(viper.GetString("config"))
	if err != nil {
		return err
	}

	ft := tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))
	ft.Header("FIELD", "METRIC", "FIELDS", "FILTER", "FORMAT")
	for _, id := range sortedKeys(doc.Fields) {
		def := doc.Fields[id]
		filter := def.Filter
		if def.FilterB != "" {
			filter += " vs " + def.FilterB
		}
		ft.Append(id, def.Metric, def.Fields, filter, def.Format)
	}
	ft.Render()

	rt := tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))
	rt.Header("REPORT", "TYPE", "FIELD", "TITLE")
	for _, id := range sortedKeys(doc.Reports) {
		def := doc.Reports[id]
		rt.Append(id, def.Type, def.Field, def.Title)
	}
	rt.Render()
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
