package cmd

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/fxlab/simtrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query session journal data",
	Long: `Query and display journal records from a SQLite database.

Subcommands:
  trades - List the trades closed during a session
  equity - Print the equity curve of a session

Examples:
  simtrader journal trades <session-id>
  simtrader journal equity <session-id> --db session.db`,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <session-id>",
	Short: "List the trades closed during a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity <session-id>",
	Short: "Print the equity curve of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEquity,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalEquityCmd)

	journalCmd.PersistentFlags().StringVar(&journalDBPath, "db", "./simtrader.db", "path to SQLite journal DB")
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListTrades(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	if len(recs) == 0 {
		fmt.Println("no trades for session", args[0])
		return nil
	}

	var total float64
	fmt.Printf("%-12s %-8s %-4s %8s %10s %10s %12s %s\n",
		"TICKET", "SYMBOL", "SIDE", "VOLUME", "OPEN", "CLOSE", "P/L", "REASON")
	for _, r := range recs {
		total += r.RealizedPL
		fmt.Printf("%-12d %-8s %-4s %8.2f %10.5f %10.5f %12.2f %s\n",
			r.Ticket, r.Symbol, r.Side, r.Volume, r.OpenPrice, r.ClosePrice, r.RealizedPL, r.Reason)
	}
	fmt.Printf("\n%d trades, total P/L $%.2f\n", len(recs), total)
	return nil
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListEquity(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}
	if len(recs) == 0 {
		fmt.Println("no equity snapshots for session", args[0])
		return nil
	}

	fmt.Printf("%-25s %12s %12s %12s %12s %10s\n", "TIME", "BALANCE", "EQUITY", "MARGIN", "FREE", "LEVEL")
	for _, e := range recs {
		level := "-"
		if !math.IsInf(e.MarginLevel, 1) {
			level = fmt.Sprintf("%.1f%%", e.MarginLevel)
		}
		fmt.Printf("%-25s %12.2f %12.2f %12.2f %12.2f %10s\n",
			e.Time.Format(time.RFC3339), e.Balance, e.Equity, e.MarginUsed, e.FreeMargin, level)
	}
	return nil
}
