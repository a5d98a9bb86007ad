package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	logFile   string
)

var rootCmd = &cobra.Command{
	Use:   "treewatch",
	Short: "Live viewer for tree-search runs",
	Long: `treewatch connects to a tree-search backend over a websocket, issues
question-answering, rubric-discovery or comparison runs, and renders the
search tree as it grows: in the terminal, as plain log lines, or in a
browser dashboard.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".treewatch.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file (overrides config)")
}
