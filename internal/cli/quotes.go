package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"paperbroker/internal/models"
	"paperbroker/pkg/utils"
)

func newQuotesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quotes [symbol...]",
		Short: "Show loaded quotes",
		Long: `Show quotes from the configured quote file.

With symbols, prints those quotes. With --underlying, prints the option chain
for that underlying, optionally limited to one --expiration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			var qs []models.Quote
			if len(args) > 0 {
				for _, sym := range args {
					inst, err := models.ParseInstrument(sym)
					if err != nil {
						return err
					}
					if q, ok := app.Quotes.Quote(inst); ok {
						qs = append(qs, q)
					} else {
						output.Warning("No quote for %s", inst.Symbol)
					}
				}
			} else {
				underlying, _ := cmd.Flags().GetString("underlying")
				var exp time.Time
				if s, _ := cmd.Flags().GetString("expiration"); s != "" {
					t, err := time.Parse("2006-01-02", s)
					if err != nil {
						return err
					}
					exp = t
				}
				qs = app.Quotes.Options(underlying, exp)
			}

			if output.IsJSON() {
				return output.JSON(qs)
			}
			if len(qs) == 0 {
				output.Dim("No quotes")
				return nil
			}
			table := NewTable(output, "SYMBOL", "BID", "ASK", "PRICE", "UNDERLYING", "DTE", "DELTA", "IV")
			for _, q := range qs {
				table.AddRow(
					q.Instrument.Symbol,
					q.Bid.StringFixed(2),
					q.Ask.StringFixed(2),
					utils.FormatPrice(q.Price),
					utils.FormatPrice(q.UnderlyingPrice),
					dteCell(q),
					greekCell(q.Greeks.Delta),
					greekCell(q.Greeks.IV),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("underlying", "", "option chain underlying symbol")
	cmd.Flags().String("expiration", "", "option chain expiration (YYYY-MM-DD)")

	cmd.AddCommand(&cobra.Command{
		Use:   "expirations <underlying>",
		Short: "List option expiration dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			dates := app.Quotes.ExpirationDates(args[0])
			if output.IsJSON() {
				out := make([]string, 0, len(dates))
				for _, d := range dates {
					out = append(out, d.Format("2006-01-02"))
				}
				return output.JSON(out)
			}
			for _, d := range dates {
				output.Println(d.Format("2006-01-02"))
			}
			return nil
		},
	})
	return cmd
}

func dteCell(q models.Quote) string {
	if !q.Instrument.IsOption() {
		return "-"
	}
	return utils.FormatQuantity(int64(q.DaysToExpiration))
}

func greekCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return decimalString(*v)
}

func decimalString(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
