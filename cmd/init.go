package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/productassist/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize productassist configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose model providers, the catalog location, and the session backend, and writes the result to the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.RunWizard(cfgFile); err != nil {
			return err
		}
		fmt.Println("Run `productassist index` to build the catalog index.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
