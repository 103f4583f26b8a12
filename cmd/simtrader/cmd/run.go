package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fxlab/simtrader/account"
	"github.com/fxlab/simtrader/bus"
	"github.com/fxlab/simtrader/config"
	"github.com/fxlab/simtrader/feed"
	"github.com/fxlab/simtrader/journal"
	"github.com/fxlab/simtrader/market"
	"github.com/fxlab/simtrader/pkg/id"
	"github.com/fxlab/simtrader/sim"
	"github.com/fxlab/simtrader/ticket"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a live simulation from a config file",
	Long: `Run a trading simulation using settings from a configuration file.

The config file specifies the account, the symbol universe with its random-walk
parameters, and an optional journal backend. The feed publishes ticks at the
configured cadence until the duration elapses or the process is interrupted.

Example:
  simtrader run --config simulation.yaml --duration 30s --demo`,
	RunE: runRun,
}

var (
	runConfigPath string
	runDuration   time.Duration
	runSeed       int64
	runDemo       bool
	runVerbose    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().DurationVarP(&runDuration, "duration", "d", 0, "stop after this long (0 runs until interrupted)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "feed RNG seed (0 seeds from the clock)")
	runCmd.Flags().BoolVar(&runDemo, "demo", false, "open a demo position with stop-loss and take-profit")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "print every tick")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	sessionID := id.New()
	acct := account.New(cfg.Account.ID, cfg.Account.Currency, sessionID, cfg.Account.Balance, cfg.Account.Leverage)
	store := market.NewTickStore()
	b := bus.New(log)

	fmt.Printf("Session %s\n", sessionID)
	fmt.Printf("  Account: %s (Balance: $%.2f %s, Leverage: 1:%.0f)\n",
		acct.ID, acct.Balance, acct.Currency, acct.Leverage)
	fmt.Printf("  Symbols: %d, Cadence: %s, Journal: %s\n\n",
		len(cfg.Feed.Symbols), cfg.Feed.Cadence, journalName(cfg.Journal))

	opts := []feed.Option{feed.WithLogger(log)}
	if d, err := cfg.Feed.ParseCadence(); err == nil {
		opts = append(opts, feed.WithCadence(d))
	}
	if runSeed != 0 {
		opts = append(opts, feed.WithSeed(runSeed))
	}

	mgr, err := feed.NewManager(store, b, cfg.FeedSymbols(), opts...)
	if err != nil {
		return fmt.Errorf("create feed: %w", err)
	}

	engine := sim.NewEngine(sim.Config{
		Account:     acct,
		Prices:      store,
		Instruments: mgr.Instruments(),
		Tickets:     ticket.NewGenerator(cfg.TicketBase),
		Bus:         b,
		Journal:     j,
		Logger:      log,
	})
	engine.Attach()

	subscribeConsole(b, runVerbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	// Prime prices so the demo order has something to fill against.
	mgr.Step(time.Now())

	if runDemo {
		if err := placeDemoOrder(ctx, engine, store, cfg); err != nil {
			return err
		}
	}

	mgr.Run(ctx)
	mgr.Stop()

	if _, err := engine.CloseAll(context.Background(), sim.ReasonManual); err != nil {
		log.Warn("close remaining positions", zap.Error(err))
	}

	snap := engine.Account()
	fmt.Printf("\nFinal Results:\n")
	fmt.Printf("  Balance: $%.2f\n", snap.Balance)
	fmt.Printf("  Equity: $%.2f\n", snap.Equity)
	fmt.Printf("  Profit/Loss: $%.2f\n", snap.Equity-cfg.Account.Balance)
	fmt.Printf("  Trades closed: %d\n", len(engine.ClosedPositions()))

	return nil
}

// placeDemoOrder opens a default-lot buy on the first configured symbol with a
// 50 pip stop and a 100 pip target.
func placeDemoOrder(ctx context.Context, engine *sim.Engine, store *market.TickStore, cfg *config.Config) error {
	sc := cfg.Feed.Symbols[0]
	t, err := store.Get(sc.Name)
	if err != nil {
		return fmt.Errorf("demo order: %w", err)
	}

	stop := t.Ask - 50*sc.PipSize
	take := t.Ask + 100*sc.PipSize

	pos, err := engine.PlaceOrder(ctx, sim.OrderRequest{
		Symbol:     sc.Name,
		Side:       sim.Buy,
		Volume:     cfg.Account.DefaultLot,
		StopLoss:   &stop,
		TakeProfit: &take,
	})
	if err != nil {
		return fmt.Errorf("demo order: %w", err)
	}

	fmt.Printf("Demo position #%d: Buy %.2f %s @ %.5f (SL %.5f, TP %.5f)\n\n",
		pos.Ticket, pos.Volume, pos.Symbol, pos.OpenPrice, stop, take)
	return nil
}

// subscribeConsole prints engine events as they happen.
func subscribeConsole(b *bus.Bus, verbose bool) {
	if verbose {
		b.Subscribe(bus.TickUpdated, func(_ bus.Kind, payload any) {
			if t, ok := payload.(market.Tick); ok {
				fmt.Printf("  tick %-8s bid %.5f ask %.5f\n", t.Symbol, t.Bid, t.Ask)
			}
		})
	}
	b.Subscribe(bus.OrderClosed, func(_ bus.Kind, payload any) {
		if c, ok := payload.(sim.ClosedOrder); ok {
			p := c.Position
			fmt.Printf("closed #%d %s %s @ %.5f (%s) P/L $%.2f\n",
				p.Ticket, p.Side, p.Symbol, p.ClosePrice, c.Reason, p.RealizedPL)
		}
	})
	b.Subscribe(bus.AccountUpdated, func(_ bus.Kind, payload any) {
		if s, ok := payload.(account.Snapshot); ok && s.OpenPositions == 0 {
			fmt.Printf("account flat: balance $%.2f equity $%.2f\n", s.Balance, s.Equity)
		}
	})
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.EquityFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	default:
		return journal.Nop{}, nil
	}
}

func journalName(jc config.JournalConfig) string {
	if jc.Type == "" {
		return "none"
	}
	return jc.Type
}
