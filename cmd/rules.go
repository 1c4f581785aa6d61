package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cargoos/supplier-scout/internal/scoring"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Validate and print the active scoring rule set",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := scoring.NewLoader(cfg.Scoring.RulesPath)
		rs := loader.Current()
		if err := rs.Validate(); err != nil {
			return err
		}
		return yaml.NewEncoder(os.Stdout).Encode(rs)
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
