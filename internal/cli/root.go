// Package cli provides the command-line interface for the paper broker.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"paperbroker/internal/broker"
	"paperbroker/internal/config"
	"paperbroker/internal/logging"
	"paperbroker/internal/models"
	"paperbroker/internal/quotes"
	"paperbroker/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-01-01"
)

// App holds the application dependencies. They are built lazily by setup so
// that --config and --quotes are honored.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Broker    *broker.PaperBroker
	Store     store.AccountStore
	Quotes    *quotes.MemorySource
	Estimator quotes.Estimator
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "paperbroker",
		Short: "Paper brokerage for equities and options",
		Long: `paperbroker simulates a brokerage account against quote snapshots.

Orders are built from legs (buy/sell to open/close), filled under market,
limit, stop and trailing stop conditions, and tracked with a maintenance
margin requirement. Every executed leg is written to the account ledger.

Use 'paperbroker help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logger, ok := logging.FromContext(cmd.Context()); ok {
				app.Logger = logger
			}
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			if dir, _ := cmd.Flags().GetString("config"); dir != "" {
				reloaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = reloaded
			}
			if file, _ := cmd.Flags().GetString("quotes"); file != "" {
				app.Config.Quotes.File = file
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/paperbroker)")
	rootCmd.PersistentFlags().String("quotes", "", "quote snapshot CSV file (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newAccountCmd(app))
	rootCmd.AddCommand(newOrderCmd(app))
	rootCmd.AddCommand(newOCOCmd(app))
	rootCmd.AddCommand(newMarginCmd(app))
	rootCmd.AddCommand(newLedgerCmd(app))
	rootCmd.AddCommand(newQuotesCmd(app))

	return rootCmd
}

// setup wires the store, quote cache and broker from configuration.
func (a *App) setup() error {
	if a.Broker != nil {
		return nil
	}

	est, err := quotes.EstimatorByName(a.Config.Engine.Estimator)
	if err != nil {
		return err
	}
	a.Estimator = est

	greeks := quotes.BlackScholes{
		RiskFreeRate:  a.Config.Engine.RiskFreeRate,
		DividendYield: a.Config.Engine.DividendYield,
	}
	a.Quotes = quotes.NewMemorySource(quotes.MemorySourceConfig{
		Greeks: greeks,
		Logger: &a.Logger,
	})
	if a.Config.Quotes.File != "" {
		n, err := quotes.LoadCSVFile(a.Config.Quotes.File, a.Quotes, greeks)
		if err != nil {
			return err
		}
		a.Logger.Debug().Int("count", n).Str("file", a.Config.Quotes.File).Msg("Quotes loaded")
	}

	if a.Config.Storage.DBPath != "" {
		st, err := store.NewSQLiteStore(a.Config.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("opening account store: %w", err)
		}
		a.Store = st
		a.Logger.Debug().Str("path", a.Config.Storage.DBPath).Msg("SQLite store initialized")
	} else {
		a.Store = store.NewMemoryStore()
		a.Logger.Warn().Msg("No database path configured, accounts will not be saved")
	}

	b, err := broker.NewPaperBroker(broker.PaperBrokerConfig{
		Store:     a.Store,
		Quotes:    a.Quotes,
		Estimator: a.Estimator,
		IDs:       models.UUIDGenerator{Prefix: "PB"},
		Logger:    &a.Logger,
	})
	if err != nil {
		return err
	}
	a.Broker = b
	return nil
}

// Close releases the account store. The next command builds a fresh one.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	a.Broker = nil
	return err
}

// accountID resolves the --account flag, falling back to the configured
// default account.
func (a *App) accountID(cmd *cobra.Command) string {
	if id, _ := cmd.Flags().GetString("account"); id != "" {
		return id
	}
	return a.Config.Account.DefaultID
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("paperbroker v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Account")
	output.Printf("  Default ID:    %s\n", cfg.Account.DefaultID)
	output.Printf("  Default Cash:  %s\n", cfg.Account.DefaultCash)
	output.Println()

	output.Bold("Engine")
	output.Printf("  Estimator:     %s\n", cfg.Engine.Estimator)
	output.Printf("  Risk-free:     %.4f\n", cfg.Engine.RiskFreeRate)
	output.Printf("  Dividend:      %.4f\n", cfg.Engine.DividendYield)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:      %s\n", cfg.Storage.DBPath)
	output.Printf("  Ledger Dir:    %s\n", cfg.Storage.LedgerDir)
	output.Printf("  Quotes File:   %s\n", cfg.Quotes.File)
}
