package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"paperbroker/internal/ledger"
	"paperbroker/pkg/utils"
)

func newLedgerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show or export the executed-leg ledger",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			account, err := app.Broker.Account(cmd.Context(), app.accountID(cmd))
			if err != nil {
				return err
			}
			entries := ledger.Entries(account)
			if output.IsJSON() {
				return output.JSON(entries)
			}
			if len(entries) == 0 {
				output.Dim("No executed legs")
				return nil
			}
			table := NewTable(output, "TIME", "ORDER", "SIDE", "SYMBOL", "QTY", "PRICE", "CASH")
			for _, e := range entries {
				table.AddRow(
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.OrderID,
					string(e.Side),
					e.Symbol,
					utils.FormatQuantity(e.Quantity),
					e.FillPrice.StringFixed(2),
					output.CashDelta(e.CashDelta),
				)
			}
			table.Render()
			return nil
		},
	}
	show.Flags().String("account", "", "account id (default from config)")

	export := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger as CSV or Parquet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			id := app.accountID(cmd)
			account, err := app.Broker.Account(cmd.Context(), id)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			format = strings.ToLower(format)
			path, _ := cmd.Flags().GetString("out")
			if path == "" {
				path = filepath.Join(app.Config.Storage.LedgerDir, id+"."+format)
			}

			entries := ledger.Entries(account)
			switch format {
			case "csv":
				err = ledger.ExportCSV(path, entries)
			case "parquet":
				err = ledger.ExportParquet(path, entries)
			default:
				return fmt.Errorf("unknown format %q (want csv or parquet)", format)
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"path": path, "rows": len(entries)})
			}
			output.Success("Wrote %d ledger rows to %s", len(entries), path)
			return nil
		},
	}
	export.Flags().String("account", "", "account id (default from config)")
	export.Flags().String("format", "csv", "csv or parquet")
	export.Flags().String("out", "", "output file (default <ledger_dir>/<account>.<format>)")

	cmd.AddCommand(show, export)
	return cmd
}
