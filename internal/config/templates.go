package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Paper Broker Configuration

[account]
# Account used when a command is not given --account
default_id = "default"
# Starting cash for new accounts
default_cash = "100000"

[engine]
# Fill price estimator: "midpoint" or "natural"
estimator = "midpoint"
# Annual risk-free rate used for option greeks (0.05 = 5%)
risk_free_rate = 0.0
# Annual dividend yield used for option greeks
dividend_yield = 0.0

[storage]
# SQLite database for account snapshots; leave empty to keep accounts in memory
# db_path = "~/.config/paperbroker/paperbroker.db"
# Directory for ledger exports
# ledger_dir = "~/.config/paperbroker/ledger"

[quotes]
# CSV file with columns symbol,as_of,bid,ask,bid_size,ask_size,price,underlying_price
file = ""

[logging]
# debug, info, warn, error
level = "info"
console = true
file = true
max_size = 100
max_backups = 7
max_age = 30
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
