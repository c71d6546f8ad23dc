package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"paperbroker/internal/broker"
	"paperbroker/internal/ledger"
	"paperbroker/internal/models"
	"paperbroker/pkg/utils"
)

func newOrderCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place an order and evaluate it against current quotes",
		Long: `Place an order built from one or more legs.

Each --leg is type:symbol:quantity[:price] where type is one of
bto, sto, btc, stc. Option symbols use the UNDERLYING+YYMMDD+C/P+STRIKE*1000
layout, for example AAPL240119C00150000.

Orders that do not fill on placement are reported as open.`,
		Example: `  paperbroker order --leg bto:AAPL:100
  paperbroker order --leg sto:SPY240119P00400000:1 --leg bto:SPY240119P00395000:1 --condition limit --price -1.50
  paperbroker order --leg stc:AAPL:100 --condition trailing_stop --trail 5 --trail-percent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(); err != nil {
				return err
			}

			legSpecs, _ := cmd.Flags().GetStringArray("leg")
			opts, err := orderOptionsFromFlags(cmd)
			if err != nil {
				return err
			}
			order, err := buildOrder(legSpecs, opts)
			if err != nil {
				return err
			}

			id := app.accountID(cmd)
			result, err := app.Broker.PlaceOrder(cmd.Context(), id, order)
			if err != nil {
				return err
			}
			return printOrderResults(cmd, app, id, []broker.OrderResult{*result})
		},
	}
	cmd.Flags().String("account", "", "account id (default from config)")
	cmd.Flags().StringArray("leg", nil, "order leg as type:symbol:quantity[:price] (repeatable)")
	addConditionFlags(cmd)
	_ = cmd.MarkFlagRequired("leg")
	return cmd
}

func newOCOCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oco",
		Short: "Place a one-cancels-other group",
		Long: `Place two or more orders as a group: the first to fill cancels the rest.

Each --order is legs@condition[:price], legs being comma-separated
type:symbol:quantity[:price] specs.`,
		Example: `  paperbroker oco --order stc:AAPL:100@limit:-160 --order stc:AAPL:100@stop:-140`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(); err != nil {
				return err
			}

			specs, _ := cmd.Flags().GetStringArray("order")
			orders := make([]*models.Order, 0, len(specs))
			for _, spec := range specs {
				o, err := parseOrderSpec(spec)
				if err != nil {
					return err
				}
				orders = append(orders, o)
			}

			id := app.accountID(cmd)
			result, err := app.Broker.PlaceOCO(cmd.Context(), id, orders...)
			if err != nil {
				return err
			}
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(result)
			}
			if result.Resolved {
				output.Success("OCO group %s resolved", result.GroupID)
			} else {
				output.Info("OCO group %s is waiting", result.GroupID)
			}
			return printOrderResults(cmd, app, id, result.Orders)
		},
	}
	cmd.Flags().String("account", "", "account id (default from config)")
	cmd.Flags().StringArray("order", nil, "sibling order as legs@condition[:price] (repeatable)")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func addConditionFlags(cmd *cobra.Command) {
	cmd.Flags().String("condition", string(models.ConditionMarket), "market, limit, stop or trailing_stop")
	cmd.Flags().String("price", "", "limit or stop price for the whole order")
	cmd.Flags().String("trail", "", "trailing stop amount")
	cmd.Flags().Bool("trail-percent", false, "treat --trail as a percentage")
}

func orderOptionsFromFlags(cmd *cobra.Command) (models.OrderOptions, error) {
	condition, _ := cmd.Flags().GetString("condition")
	price, _ := cmd.Flags().GetString("price")
	trail, _ := cmd.Flags().GetString("trail")
	percent, _ := cmd.Flags().GetBool("trail-percent")

	opts := models.OrderOptions{
		Condition:      models.Condition(strings.ToLower(condition)),
		TrailIsPercent: percent,
	}
	if price != "" {
		p, err := decimal.NewFromString(price)
		if err != nil {
			return opts, fmt.Errorf("invalid --price %q: %w", price, err)
		}
		opts.Price = decimal.NewNullDecimal(p)
	}
	if trail != "" {
		t, err := decimal.NewFromString(trail)
		if err != nil {
			return opts, fmt.Errorf("invalid --trail %q: %w", trail, err)
		}
		opts.Trail = t
	}
	return opts, nil
}

// buildOrder adds the legs first and then applies an explicit --price, so
// the flag is the order's price regardless of per-leg prices.
func buildOrder(legSpecs []string, opts models.OrderOptions) (*models.Order, error) {
	price := opts.Price
	opts.Price = decimal.NullDecimal{}
	order, err := models.NewOrder(nil, opts)
	if err != nil {
		return nil, err
	}
	for _, spec := range legSpecs {
		leg, err := parseLeg(spec)
		if err != nil {
			return nil, err
		}
		if err := order.AddLeg(leg); err != nil {
			return nil, err
		}
	}
	if price.Valid {
		order.SetPrice(price.Decimal)
	}
	return order, nil
}

// parseLeg parses type:symbol:quantity[:price].
func parseLeg(spec string) (models.Leg, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) < 3 || len(parts) > 4 {
		return models.Leg{}, fmt.Errorf("invalid leg %q (want type:symbol:quantity[:price])", spec)
	}

	orderType := models.OrderType(strings.ToLower(parts[0]))
	inst, err := models.ParseInstrument(parts[1])
	if err != nil {
		return models.Leg{}, err
	}
	qty, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return models.Leg{}, fmt.Errorf("invalid quantity in leg %q: %w", spec, err)
	}

	var price decimal.NullDecimal
	if len(parts) == 4 && parts[3] != "" {
		p, err := decimal.NewFromString(parts[3])
		if err != nil {
			return models.Leg{}, fmt.Errorf("invalid price in leg %q: %w", spec, err)
		}
		price = decimal.NewNullDecimal(p)
	}
	return models.NewLeg(inst, qty, orderType, price)
}

// parseOrderSpec parses legs@condition[:price] for OCO siblings.
func parseOrderSpec(spec string) (*models.Order, error) {
	legPart, condPart, hasCond := strings.Cut(spec, "@")
	opts := models.OrderOptions{Condition: models.ConditionMarket}
	if hasCond {
		cond, price, hasPrice := strings.Cut(condPart, ":")
		opts.Condition = models.Condition(strings.ToLower(cond))
		if hasPrice {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return nil, fmt.Errorf("invalid price in order %q: %w", spec, err)
			}
			opts.Price = decimal.NewNullDecimal(p)
		}
	}
	return buildOrder(strings.Split(legPart, ","), opts)
}

func printOrderResults(cmd *cobra.Command, app *App, accountID string, results []broker.OrderResult) error {
	output := NewOutput(cmd)
	account, err := app.Broker.Account(cmd.Context(), accountID)
	if err != nil {
		return err
	}
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"orders":  results,
			"account": account,
		})
	}

	for _, r := range results {
		switch r.Status {
		case models.StatusFilled:
			output.Success("Order %s filled (%d legs)", r.OrderID, r.Fills)
		case models.StatusCanceled:
			output.Dim("Order %s canceled", r.OrderID)
		default:
			output.Warning("Order %s is open; it is not kept after this command exits", r.OrderID)
		}
		if r.Message != "" {
			output.Dim("  %s", r.Message)
		}
		for _, e := range ledger.ForOrder(account, r.OrderID) {
			output.Printf("  %-4s %-22s %8s @ %-10s %s\n", e.Side, e.Symbol, utils.FormatQuantity(e.Quantity),
				e.FillPrice.StringFixed(2), output.CashDelta(e.CashDelta))
		}
	}
	output.Println()
	printAccount(output, account)
	return nil
}
