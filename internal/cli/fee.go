package cli

import (
	"fmt"
	"time"

	"bookbite/internal/engine"
	"bookbite/internal/models"

	"github.com/spf13/cobra"
)

func newFeeCmd() *cobra.Command {
	var (
		seats        int
		promoPercent int
	)

	c := &cobra.Command{
		Use:   "fee",
		Short: "Print the reservation fee for a table size",
		RunE: func(cmd *cobra.Command, args []string) error {
			var promo *models.PromoCode
			if cmd.Flags().Changed("promo-percent") {
				promo = &models.PromoCode{Code: "CLI", DiscountPercentage: promoPercent, IsActive: true}
			}

			quote, err := engine.Default().Quote(seats, promo, time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fee:      %s\n", quote.Fee)
			if promo != nil {
				fmt.Fprintf(out, "discount: %s (%d%%)\n", quote.Discount, quote.DiscountPercentage)
			}
			fmt.Fprintf(out, "total:    %s\n", quote.Total)
			return nil
		},
	}

	c.Flags().IntVar(&seats, "seats", 0, "table seat count")
	c.Flags().IntVar(&promoPercent, "promo-percent", 0, "discount percentage to apply")
	_ = c.MarkFlagRequired("seats")
	return c
}
