package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set by the release build via linker flags.
var (
	version = "dev"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tankmetrics %s (%s)\n", version, commit)
	},
}
