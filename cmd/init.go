package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/treewatch/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize treewatch configuration with an interactive wizard",
	Long:  `Runs an interactive wizard that points treewatch at a search backend and generates a .treewatch.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
