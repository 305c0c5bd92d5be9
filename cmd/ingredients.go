package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ingredientsCmd = &cobra.Command{
	Use:   "ingredients",
	Short: "List the ingredient catalog with base prices and stock",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		for _, id := range cat.IDs() {
			ing, err := cat.Get(id)
			if err != nil {
				continue
			}
			p.Fprintf(os.Stdout, "%-24s %-38s %8.2f %s/%s  stock %.0f\n",
				ing.ID, ing.Name, ing.BasePrice, ing.Currency, ing.UnitOfMeasure, ing.Stock)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingredientsCmd)
}
