package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/gattwalk/inspector"
	"github.com/srg/gattwalk/internal/gatttool"
	"github.com/srg/gattwalk/pkg/config"
	"github.com/srg/gattwalk/pkg/report"
	"golang.org/x/term"
)

// inspectDevice is replaced in tests to run against a simulated gatttool.
var inspectDevice = inspector.InspectDevice[*report.Report]

// isTerminal reports whether f is attached to a terminal.
var isTerminal = func(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func registerDiscoverFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()

	flags := cmd.Flags()
	flags.String("config", "", "YAML configuration file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolP("verbose", "v", false, "Verbose output (same as --log-level debug)")
	flags.String("format", defaults.OutputFormat, "Output format (table, json, yaml)")
	flags.Duration("timeout", defaults.ResponseTimeout, "Timeout for each gatttool response")
	flags.Duration("connect-timeout", defaults.ConnectTimeout, "Connection timeout")
	flags.Duration("settle", defaults.SettleDelay, "Pause after connecting before discovery starts")
	flags.Duration("page-settle", defaults.PageSettle, "How long a short attribute page waits for further rows")
	flags.String("adapter", defaults.Adapter, "Bluetooth adapter, e.g. hci1 (default adapter if empty)")
	flags.String("addr-type", defaults.AddressType, "Peripheral address type (public, random)")
	flags.Bool("best-effort", false, "Continue discovery when the connection is refused")
	flags.Int("max-width", defaults.MaxColumnWidth, "Table cell wrap width (0 disables wrapping)")
	flags.String("tool", defaults.Tool, "gatttool executable")
}

// loadConfig reads the optional config file and applies explicitly set flags over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.OutputFormat, _ = flags.GetString("format")
	}
	if flags.Changed("timeout") {
		cfg.ResponseTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("connect-timeout") {
		cfg.ConnectTimeout, _ = flags.GetDuration("connect-timeout")
	}
	if flags.Changed("settle") {
		cfg.SettleDelay, _ = flags.GetDuration("settle")
	}
	if flags.Changed("page-settle") {
		cfg.PageSettle, _ = flags.GetDuration("page-settle")
	}
	if flags.Changed("adapter") {
		cfg.Adapter, _ = flags.GetString("adapter")
	}
	if flags.Changed("addr-type") {
		cfg.AddressType, _ = flags.GetString("addr-type")
	}
	if flags.Changed("best-effort") {
		if bestEffort, _ := flags.GetBool("best-effort"); bestEffort {
			cfg.ConnectPolicy = config.ConnectBestEffort
		} else {
			cfg.ConnectPolicy = config.ConnectFailFast
		}
	}
	if flags.Changed("max-width") {
		cfg.MaxColumnWidth, _ = flags.GetInt("max-width")
	}
	if flags.Changed("tool") {
		cfg.Tool, _ = flags.GetString("tool")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	address := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg, "verbose")
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	progress := NewProgressPrinter(cmd.ErrOrStderr(), isTerminal(os.Stderr) && cfg.LogLevel < logrus.InfoLevel)
	progress.Start()
	defer progress.Stop()

	opts := inspector.OptionsFromConfig(cfg)
	logger.WithFields(logrus.Fields{
		"address": address,
		"tool":    cfg.Tool,
		"policy":  cfg.ConnectPolicy,
	}).Debug("starting discovery")

	renderOpts := &report.Options{
		Format:   cfg.OutputFormat,
		MaxWidth: cfg.MaxColumnWidth,
		Color:    isTerminal(os.Stdout),
	}

	// Tables follow the phases: services before characteristic discovery.
	// JSON and YAML are written as one document at the end.
	var onServices inspector.ServicesCallback
	tables := cfg.OutputFormat == report.FormatTable
	if tables {
		onServices = func(rows []report.ServiceRow) error {
			progress.Flush()
			if err := report.RenderServices(cmd.OutOrStdout(), rows, renderOpts); err != nil {
				return fmt.Errorf("failed to render services: %w", err)
			}
			return nil
		}
	}

	rep, err := inspectDevice(ctx, address, opts, logger, progress.Callback(), func(t gatttool.Transport) (*report.Report, error) {
		return inspector.Discover(ctx, t, address, opts, logger, progress.Callback(), onServices)
	})
	if err != nil {
		return err
	}
	progress.Stop()

	if tables {
		err = report.RenderCharacteristics(cmd.OutOrStdout(), rep.Characteristics, renderOpts)
	} else {
		err = report.Render(cmd.OutOrStdout(), rep, renderOpts)
	}
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
