package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dividend-recovery/internal/config"
)

func newConfigCmd(app *App) *cobra.Command {
	optional := map[string]string{annotationConfigOptional: "true"}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the configuration in config.toml.",
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
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: optional,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			path := config.Path(dir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: optional,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			err := app.configErr
			if err == nil {
				err = app.Config.Validate()
			}
			if output.IsJSON() {
				res := map[string]interface{}{"valid": err == nil}
				if err != nil {
					res["error"] = err.Error()
				}
				if jerr := output.JSON(res); jerr != nil {
					return jerr
				}
				return err
			}
			if err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	targets := make([]string, len(cfg.Analysis.Targets))
	for i, f := range cfg.Analysis.Targets {
		targets[i] = FormatTarget(f)
	}
	asOf := "last complete year"
	if cfg.Analysis.AsOfYear > 0 {
		asOf = strconv.Itoa(cfg.Analysis.AsOfYear)
	}

	output.Bold("Analysis")
	output.Printf("  Targets:         %s\n", strings.Join(targets, ", "))
	output.Printf("  Lookback years:  %d\n", cfg.Analysis.LookbackYears)
	output.Printf("  As of:           %s\n", asOf)
	output.Printf("  Window:          %s -%d/+%d\n", cfg.Analysis.WindowMode, cfg.Analysis.WindowBefore, cfg.Analysis.WindowAfter)
	output.Printf("  Reference:       %s\n", cfg.Analysis.Reference)
	output.Println()

	output.Bold("Data")
	output.Printf("  Source:          %s\n", cfg.Data.Source)
	if cfg.Data.Source == "csv" {
		output.Printf("  CSV directory:   %s\n", cfg.Data.CSVDir)
	}
	output.Printf("  Cache:           %v\n", cfg.Data.CacheEnabled)
	if cfg.Data.CacheEnabled {
		output.Printf("  Cache path:      %s\n", cfg.Data.CachePath)
		output.Printf("  Cache TTL:       %s\n", FormatDuration(cfg.Data.CacheTTL))
	}
	output.Printf("  Rate limit:      %.1f req/s, %d attempts\n", cfg.Data.RequestsPerSecond, cfg.Data.MaxAttempts)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %v\n", cfg.Logging.File)
	if cfg.Logging.File {
		output.Printf("  File path:       %s\n", cfg.Logging.FilePath)
	}
}
