package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var fxPair string

var fxCmd = &cobra.Command{
	Use:   "fx",
	Short: "Print the current exchange rate for a currency pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		rates := buildFXCache(cfg)
		rate, stale, err := rates.Get(cmd.Context(), fxPair)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"pair":  fxPair,
			"rate":  rate,
			"stale": stale,
		})
	},
}

func init() {
	fxCmd.Flags().StringVar(&fxPair, "pair", "CNY/RUB", "currency pair")
	rootCmd.AddCommand(fxCmd)
}
