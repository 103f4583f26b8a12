package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "simtrader",
	Short: "A simulated FX broker with a live random-walk price feed",
	Long: `Simtrader runs a self-contained FX trading simulation in Go.

It provides tools for:
  - Driving a configurable multi-symbol random-walk price feed
  - Opening and closing positions against a simulated broker
  - Automatic stop-loss and take-profit enforcement on every tick
  - Margin, equity and free-margin accounting
  - Journaling trades and equity curves to CSV or SQLite

Complete documentation is available at https://github.com/fxlab/simtrader`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
