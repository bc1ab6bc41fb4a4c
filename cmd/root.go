package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// logger is the process-wide logger, configured in the persistent pre-run
// and passed down into every component explicitly.
var logger zerolog.Logger

var rootCmd = &cobra.Command{
	Use:   "tankmetrics",
	Short: "Battle replay report tool",
	Long:  "Aggregate vehicle-combat battle replays into configurable tabular reports.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if viper.GetBool("verbose") {
			level = zerolog.InfoLevel
		}
		if viper.GetBool("debug") {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	dataDir := filepath.Join(mustUserHome(), ".tankmetrics")

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to the field/report definitions TOML (default: built-in)")
	pf.String("tankopedia", filepath.Join(dataDir, "tankopedia.json"), "path to the vehicle catalog JSON")
	pf.String("maps", filepath.Join(dataDir, "maps.json"), "path to the map catalog JSON")
	pf.String("app-id", "", "stats API application id")
	pf.Bool("verbose", false, "info-level logging")
	pf.Bool("debug", false, "debug-level logging")

	viper.SetEnvPrefix("TANKMETRICS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(pf)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(versionCmd)
}

func mustUserHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
