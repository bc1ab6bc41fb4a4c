package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vporokh/go-tank-metrics/internal/cache"
	"github.com/vporokh/go-tank-metrics/internal/catalog"
	"github.com/vporokh/go-tank-metrics/internal/config"
	"github.com/vporokh/go-tank-metrics/internal/model"
	"github.com/vporokh/go-tank-metrics/internal/pipeline"
	"github.com/vporokh/go-tank-metrics/internal/reports"
	"github.com/vporokh/go-tank-metrics/internal/wgapi"
)

// analyze command flags.
var (
	// analyzePlayer is the account id whose perspective is analyzed;
	// 0 means each replay's own recording protagonist.
	analyzePlayer uint64
	// analyzeStatsType selects the stats granularity: account, tier, vehicle.
	analyzeStatsType string
	// analyzeFields / analyzeReports name the definition sets to use.
	analyzeFields  string
	analyzeReports string
	// analyzeReaders / analyzeFetchers size the worker pools.
	analyzeReaders  int
	analyzeFetchers int
	// analyzeExport writes a tab-delimited copy of every report to a file.
	analyzeExport string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <replay-file-or-dir>...",
	Short: "Aggregate battle replays into configured reports",
	Long: `Reads battle replay JSON files, enriches them with the vehicle and map
catalogs and remote player statistics, and prints one table per configured
report.

Examples:
  # Analyze a directory of replays with the built-in reports
  tankmetrics analyze ~/replays

  # Per-tier stats, from a specific player's perspective
  tankmetrics analyze --player 521458531 --stats-type tier ~/replays`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Uint64Var(&analyzePlayer, "player", 0, "account id to analyze (default: replay protagonist)")
	analyzeCmd.Flags().StringVar(&analyzeStatsType, "stats-type", "account", "stats granularity: account, tier or vehicle")
	analyzeCmd.Flags().StringVar(&analyzeFields, "fields", "default", "field set to use")
	analyzeCmd.Flags().StringVar(&analyzeReports, "reports", "default", "report set to use")
	analyzeCmd.Flags().IntVar(&analyzeReaders, "readers", 4, "concurrent replay readers")
	analyzeCmd.Flags().IntVar(&analyzeFetchers, "fetchers", 2, "concurrent stat-fetch workers")
	analyzeCmd.Flags().StringVar(&analyzeExport, "export", "", "also write reports as tab-delimited text to this file")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	statsType, err := cache.ParseStatsType(analyzeStatsType)
	if err != nil {
		return err
	}

	vehicles, err := catalog.LoadVehicles(viper.GetString("tankopedia"))
	if err != nil {
		return fmt.Errorf("vehicle catalog: %w", err)
	}
	maps, err := catalog.LoadMaps(viper.GetString("maps"))
	if err != nil {
		return fmt.Errorf("map catalog: %w", err)
	}

	doc, err := config.Load(viper.GetString("config"))
	if err != nil {
		return err
	}
	fields, err := doc.BuildFields(analyzeFields, reports.NewFieldFactories(), logger)
	if err != nil {
		return err
	}
	classifiers, err := doc.BuildReports(analyzeReports, reports.NewCategorizationFactories(), logger)
	if err != nil {
		return err
	}
	engine := reports.NewEngine(fields, classifiers)

	appID := viper.GetString("app-id")
	if appID == "" {
		return fmt.Errorf("no stats API application id: set TANKMETRICS_APP_ID or use --app-id")
	}
	client := wgapi.NewClient(appID)
	stats := cache.New(client, statsType, vehicles, logger)

	counters, err := pipeline.Run(cmd.Context(), pipeline.Options{
		Args:     args,
		Player:   model.AccountID(analyzePlayer),
		Readers:  analyzeReaders,
		Fetchers: analyzeFetchers,
	}, engine, stats, vehicles, maps, logger)
	if err != nil {
		return err
	}

	engine.Render(os.Stdout)

	if analyzeExport != "" {
		f, err := os.Create(analyzeExport)
		if err != nil {
			return fmt.Errorf("create export: %w", err)
		}
		defer f.Close()
		if err := engine.Export(f); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Printf("\nExported to %s\n", analyzeExport)
	}

	counters.PrintSummary(os.Stdout)
	return nil
}
