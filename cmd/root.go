package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logPath    string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft mesh routing daemon",
	Long: `Weft is a distance-vector mesh routing daemon.
It keeps a loop-free route to every destination subnet in the mesh and
converges as links and neighbours come and go.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "weft.yaml", "node configuration file")
	rootCmd.PersistentFlags().StringVarP(&logPath, "log", "l", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
