package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/efreitasn/papertrade/internal/catalog"
	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store/sqlite"
)

// seedHistoryPoints is how many synthetic price points seed generates per
// instrument.
const seedHistoryPoints = 20

var resetPrice = decimal.NewFromInt(100)

type options struct {
	dbPath      string
	catalogPath string
	shockMode   string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "marketctl",
		Short:         "Administer the papertrade market database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultDB := os.Getenv("DATABASE_PATH")
	if defaultDB == "" {
		defaultDB = "papertrade.db"
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", defaultDB, "SQLite database path (defaults to DATABASE_PATH)")
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", os.Getenv("CATALOG_PATH"), "Seed catalog YAML (defaults to the embedded catalog)")
	root.PersistentFlags().StringVar(&opts.shockMode, "shock-mode", string(domain.ShockRebase), "How shocks set the previous price: rebase or track")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine activity to stderr")

	root.AddCommand(seedCmd(opts))
	root.AddCommand(listCmd(opts))
	root.AddCommand(resetCmd(opts))
	root.AddCommand(shockCmd(opts, "crash", "Drop every sector by 20%", domain.EventNegative, -domain.MaxImpactPercent))
	root.AddCommand(shockCmd(opts, "boom", "Lift every sector by 20%", domain.EventPositive, domain.MaxImpactPercent))
	root.AddCommand(sectorCmd(opts))
	return root
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// withDB opens the database for the duration of fn.
func (o *options) withDB(fn func(db *sqlite.DB) error) error {
	db, err := sqlite.Open(o.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func seedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Overwrite every catalog instrument with fresh listing prices and history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds, err := catalog.Load(opts.catalogPath)
			if err != nil {
				return err
			}
			return opts.withDB(func(db *sqlite.DB) error {
				ctx := cmd.Context()
				instruments := db.Instruments()
				now := time.Now()
				for _, s := range seeds {
					if err := instruments.Put(ctx, s.InstrumentWithHistory(now, seedHistoryPoints, rand.Float64)); err != nil {
						return fmt.Errorf("seeding %s: %w", s.Symbol, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d instruments\n", len(seeds))
				return nil
			})
		},
	}
}

func listCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every instrument with its price and change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(func(db *sqlite.DB) error {
				insts, err := db.Instruments().List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SYMBOL\tSECTOR\tPRICE\tCHANGE\tCHANGE%")
				for _, inst := range insts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						inst.Symbol, inst.Sector,
						inst.Price.StringFixed(2), inst.Change.StringFixed(2), inst.ChangePercent.StringFixed(2))
				}
				return tw.Flush()
			})
		},
	}
}

func resetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Set every price to 100.00 and clear history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(func(db *sqlite.DB) error {
				ctx := cmd.Context()
				instruments := db.Instruments()
				insts, err := instruments.List(ctx)
				if err != nil {
					return err
				}
				now := time.Now()
				for _, inst := range insts {
					_, err := instruments.Apply(ctx, inst.Symbol, func(cur *domain.Instrument) error {
						cur.Reprice(resetPrice, now)
						return nil
					})
					if err != nil {
						return fmt.Errorf("resetting %s: %w", inst.Symbol, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %d instruments to %s\n", len(insts), resetPrice.StringFixed(2))
				return nil
			})
		},
	}
}

func shockCmd(opts *options, name, short string, eventType domain.EventType, impact int64) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.applyShock(cmd, engine.Shock{
				Type:          eventType,
				Title:         "marketctl " + name,
				Sectors:       domain.Sectors(),
				ImpactPercent: decimal.NewFromInt(impact),
			})
		},
	}
}

func sectorCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "sector <name> <percent>",
		Short:   "Move one sector by a percentage between -20 and 20",
		Example: "  marketctl sector Technology 5\n  marketctl sector Energy -- -12.5",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sector, err := domain.ParseSector(args[0])
			if err != nil {
				return err
			}
			f, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid percent %q", args[1])
			}
			impact, err := domain.ParseMoney(f)
			if err != nil {
				return fmt.Errorf("invalid percent %q: %w", args[1], err)
			}
			if impact.Abs().GreaterThan(decimal.NewFromInt(domain.MaxImpactPercent)) {
				return fmt.Errorf("percent must be between -%d and %d", domain.MaxImpactPercent, domain.MaxImpactPercent)
			}
			eventType := domain.EventPositive
			if impact.IsNegative() {
				eventType = domain.EventNegative
			}
			return opts.applyShock(cmd, engine.Shock{
				Type:          eventType,
				Title:         "marketctl sector " + string(sector),
				Sectors:       []domain.Sector{sector},
				ImpactPercent: impact,
			})
		},
	}
}

func (o *options) applyShock(cmd *cobra.Command, shock engine.Shock) error {
	mode, err := domain.ParseShockMode(o.shockMode)
	if err != nil {
		return err
	}
	return o.withDB(func(db *sqlite.DB) error {
		cfg := engine.DefaultShockConfig()
		cfg.Mode = mode
		applier := engine.NewShockApplier(db.Instruments(), engine.NopPublisher{}, cfg, o.logger(cmd))
		affected, err := applier.Apply(cmd.Context(), shock)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s%% applied to %d instruments\n",
			shock.Title, shock.ImpactPercent.StringFixed(2), affected)
		return nil
	})
}
