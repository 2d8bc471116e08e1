package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Dividend Recovery Configuration

[analysis]
# Fractions of the dividend the close must win back, each in (0, 1]
targets = [0.5, 0.75, 1.0]
# Number of calendar years to analyze, most recent first
lookback_years = 3
# Most recent year analyzed; 0 uses the last complete calendar year
as_of_year = 0
# Window around each ex-date: "calendar" (days) or "trading" (sessions)
window_mode = "calendar"
window_before = 10
window_after = 90
# Pre-dividend reference close: "prior_close", "window_start" or "at_or_before"
reference = "prior_close"

[data]
# Price history source: "yahoo" or "csv"
source = "yahoo"
# Directory holding <SYMBOL>.csv and <SYMBOL>_dividends.csv when source = "csv"
csv_dir = "~/.config/dividend-recovery/data"
# Cache downloads in a local SQLite database
cache_enabled = true
cache_path = "~/.config/dividend-recovery/cache.db"
# Serve cached downloads younger than this (e.g., "24h", "30m")
cache_ttl = "24h"
request_timeout = "30s"
requests_per_second = 2.0
max_attempts = 3

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
# Rotating log file
file = false
file_path = "~/.config/dividend-recovery/logs/divrec.log"
max_size = 20
max_backups = 5
max_age = 30

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "2006-01-02"
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, FileName+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
