package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roastline/market-cli/internal/model"
)

var (
	buyIngredient string
	buyQuantity   float64
	buyBusiness   string
	buyMaxPrice   float64
)

var buyCmd = &cobra.Command{
	Use:   "buy",
	Short: "Purchase an ingredient at the current price",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.BuyRequest{
			IngredientID: buyIngredient,
			Quantity:     buyQuantity,
			BusinessID:   buyBusiness,
		}
		if buyMaxPrice > 0 {
			req.MaxPerUnit = &buyMaxPrice
		}

		order, err := env.Purchaser.Buy(cmd.Context(), req, time.Now())
		if err != nil && order.Status != model.OrderFailed {
			return err
		}

		// A FAILED order still prints; the reason is in the payload.
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(order)
	},
}

func init() {
	buyCmd.Flags().StringVar(&buyIngredient, "ingredient", "", "ingredient id (required)")
	buyCmd.Flags().Float64Var(&buyQuantity, "quantity", 0, "quantity to buy (required)")
	buyCmd.Flags().StringVar(&buyBusiness, "business", "", "business id to record on the order")
	buyCmd.Flags().Float64Var(&buyMaxPrice, "max-price", 0, "maximum acceptable price per unit")
	_ = buyCmd.MarkFlagRequired("ingredient")
	_ = buyCmd.MarkFlagRequired("quantity")
	rootCmd.AddCommand(buyCmd)
}
