package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roastline/market-cli/internal/model"
	"github.com/roastline/market-cli/internal/store"
)

var (
	ordersBusiness string
	ordersStatus   string
	ordersLimit    int
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List recorded orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		orders, err := st.ListOrders(ctx, store.OrderFilter{
			BusinessID: ordersBusiness,
			Status:     model.OrderStatus(ordersStatus),
			Limit:      ordersLimit,
		})
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		for _, o := range orders {
			if o.Status == model.OrderFailed {
				p.Fprintf(os.Stdout, "%s  %-9s  %s\n", o.PlacedAt.Format("2006-01-02 15:04"), o.Status, o.FailureReason)
				continue
			}
			p.Fprintf(os.Stdout, "%s  %-9s  %10.2f  %s\n", o.PlacedAt.Format("2006-01-02 15:04"), o.Status, o.TotalCost, o.ID)
		}
		return nil
	},
}

func init() {
	ordersCmd.Flags().StringVar(&ordersBusiness, "business", "", "filter by business id")
	ordersCmd.Flags().StringVar(&ordersStatus, "status", "", "filter by status (CONFIRMED or FAILED)")
	ordersCmd.Flags().IntVar(&ordersLimit, "limit", 50, "maximum orders to list")
	rootCmd.AddCommand(ordersCmd)
}
