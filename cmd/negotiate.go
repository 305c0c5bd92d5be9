package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rotisserie/eris"
)

var (
	negotiateIngredient string
	negotiateQuantity   float64
	negotiatePrice      float64
	negotiateRationale  string
)

// negotiateCmd prices an ingredient and immediately runs a counter-offer
// against the fresh quote, exercising the decision path end to end.
var negotiateCmd = &cobra.Command{
	Use:   "negotiate",
	Short: "Quote an ingredient and negotiate the price in one shot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if negotiatePrice <= 0 {
			return eris.New("--propose must be positive")
		}

		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		now := time.Now()
		q, err := env.Factory.Create(cmd.Context(), negotiateIngredient, negotiateQuantity, now)
		if err != nil {
			return err
		}
		zap.L().Info("quote issued",
			zap.String("quote_id", q.ID),
			zap.Float64("price_per_unit", q.PricePerUnit),
		)

		res, err := env.Negotiator.Negotiate(cmd.Context(), q.ID, negotiatePrice, negotiateRationale, now)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	negotiateCmd.Flags().StringVar(&negotiateIngredient, "ingredient", "", "ingredient id (required)")
	negotiateCmd.Flags().Float64Var(&negotiateQuantity, "quantity", 0, "quantity to quote (required)")
	negotiateCmd.Flags().Float64Var(&negotiatePrice, "propose", 0, "proposed price per unit (required)")
	negotiateCmd.Flags().StringVar(&negotiateRationale, "rationale", "", "why the seller should accept (required)")
	_ = negotiateCmd.MarkFlagRequired("ingredient")
	_ = negotiateCmd.MarkFlagRequired("quantity")
	_ = negotiateCmd.MarkFlagRequired("propose")
	_ = negotiateCmd.MarkFlagRequired("rationale")
	rootCmd.AddCommand(negotiateCmd)
}
