package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd discovers and decodes the GATT table of one peripheral
var rootCmd = newRootCommand()

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gattwalk <device-address>",
		Short: "Discover GATT services and characteristics through gatttool",
		Long: `Drives "gatttool --interactive" to connect to a Bluetooth Low Energy
peripheral, walks its attribute table page by page and decodes well-known
values:

- device name, model, serial and revision strings
- appearance category and sub-category
- peripheral preferred connection parameters
- characteristic declarations and property bitmasks

Two reports are printed: one row per attribute (services view) and one row
per characteristic (characteristics view).`,
		Example: `  gattwalk C4:7C:8D:6A:3E:12
  gattwalk --addr-type random --format json F1:22:33:44:55:66
  gattwalk --config gattwalk.yaml --log-level debug C4:7C:8D:6A:3E:12`,
		Args:    cobra.ExactArgs(1),
		RunE:    runDiscover,
		Version: formatVersion(version),
	}

	// Silence Cobra's "Error:" prefix - main() prints clean errors
	cmd.SilenceErrors = true
	cmd.SetVersionTemplate(fmt.Sprintf("gattwalk {{.Version}} (commit %s, built %s)\n", commit, date))

	registerDiscoverFlags(cmd)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		// Print user-friendly error message
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		stop()
		os.Exit(1)
	}
}
