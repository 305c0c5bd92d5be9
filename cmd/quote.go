package main

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <ingredient-id> <quantity>",
	Short: "Price a quantity of an ingredient",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, err := strconv.ParseFloat(args[1], 64)
		if err != nil || quantity <= 0 {
			return eris.Errorf("invalid quantity: %s", args[1])
		}

		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		q, err := env.Factory.Create(cmd.Context(), args[0], quantity, time.Now())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	},
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}
