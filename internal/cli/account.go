package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"paperbroker/internal/models"
	"paperbroker/pkg/utils"
)

func newAccountCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create and inspect accounts",
	}

	create := &cobra.Command{
		Use:   "create [id]",
		Short: "Create an account with starting cash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			id := app.Config.Account.DefaultID
			if len(args) == 1 {
				id = args[0]
			}
			cash := app.Config.DefaultCash()
			if s, _ := cmd.Flags().GetString("cash"); s != "" {
				c, err := decimal.NewFromString(s)
				if err != nil {
					return fmt.Errorf("invalid --cash %q: %w", s, err)
				}
				cash = c
			}

			account, err := app.Broker.CreateAccount(cmd.Context(), id, cash)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(account)
			}
			output.Success("Created account %s with %s", account.ID, utils.FormatCurrency(account.Cash))
			return nil
		},
	}
	create.Flags().String("cash", "", "starting cash (default from config)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show cash, positions and margin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			asOf, err := asOfFlag(cmd)
			if err != nil {
				return err
			}
			account, err := app.Store.GetAccount(cmd.Context(), app.accountID(cmd), asOf)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(account)
			}
			printAccount(output, account)
			return nil
		},
	}
	show.Flags().String("account", "", "account id (default from config)")
	show.Flags().String("as-of", "", "show the account as of a time (RFC3339 or YYYY-MM-DD)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List account ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			asOf, err := asOfFlag(cmd)
			if err != nil {
				return err
			}
			ids, err := app.Store.AccountIDs(cmd.Context(), asOf)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(ids)
			}
			if len(ids) == 0 {
				output.Dim("No accounts")
				return nil
			}
			for _, id := range ids {
				output.Println(id)
			}
			return nil
		},
	}
	list.Flags().String("as-of", "", "list accounts that existed at a time (RFC3339 or YYYY-MM-DD)")

	cmd.AddCommand(create, show, list)
	return cmd
}

func newMarginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "margin",
		Short: "Recompute maintenance margin against current quotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			id := app.accountID(cmd)
			margin, err := app.Broker.RefreshMargin(cmd.Context(), id)
			if err != nil {
				return err
			}
			account, err := app.Broker.Account(cmd.Context(), id)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"account_id":         id,
					"maintenance_margin": margin,
					"cash":               account.Cash,
					"buying_power":       account.BuyingPower(),
				})
			}
			output.Printf("Maintenance margin: %s\n", utils.FormatCurrency(margin))
			output.Printf("Buying power:       %s\n", output.Money(account.BuyingPower()))
			return nil
		},
	}
	cmd.Flags().String("account", "", "account id (default from config)")
	return cmd
}

func printAccount(output *Output, account *models.Account) {
	output.Bold("Account %s", account.ID)
	output.Printf("  Cash:               %s\n", output.Money(account.Cash))
	output.Printf("  Maintenance margin: %s\n", utils.FormatCurrency(account.MaintenanceMargin))
	output.Printf("  Buying power:       %s\n", output.Money(account.BuyingPower()))
	output.Println()

	if len(account.Positions) == 0 {
		output.Dim("No open positions")
		return
	}
	table := NewTable(output, "SYMBOL", "KIND", "QTY", "COST BASIS")
	for _, p := range account.Positions {
		table.AddRow(p.Instrument.Symbol, string(p.Instrument.Kind), utils.FormatQuantity(p.Quantity), p.CostBasis.StringFixed(2))
	}
	table.Render()
}

// asOfFlag parses --as-of; nil means latest.
func asOfFlag(cmd *cobra.Command) (*time.Time, error) {
	s, _ := cmd.Flags().GetString("as-of")
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD)", s)
	}
	// A bare date means the end of that day.
	return t.Add(24*time.Hour - time.Nanosecond), nil
}

