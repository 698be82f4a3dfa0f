package cmd

import (
	"github.com/spf13/cobra"
	"github.com/weftnet/weft/core"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run weft",
	Long:  `This will run the weft routing daemon on the current host.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return core.Bootstrap(configPath, logPath, verbose)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
