// Package projector parses projector command flags and runs projection
// replay: one-shot by default, or polling the journal with -follow.
package projector

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	entrypoint "github.com/Turnage-Digital/Holmes-sub001/internal/platform/cmd"
	"github.com/Turnage-Digital/Holmes-sub001/internal/projection"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage/sqlite"
)

// Config holds projector command configuration.
type Config struct {
	DBPath       string        `env:"HOLMES_DB_PATH" envDefault:"holmes.db"`
	BatchSize    int           `env:"HOLMES_PROJECTOR_BATCH" envDefault:"200"`
	PollInterval time.Duration `env:"HOLMES_PROJECTOR_POLL" envDefault:"5s"`

	Projection string
	Reset      bool
	Follow     bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database")
	fs.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Events per replay batch")
	fs.StringVar(&cfg.Projection, "projection", "", "Replay only the named projection")
	fs.BoolVar(&cfg.Reset, "reset", false, "Clear the projection and its checkpoint before replaying")
	fs.BoolVar(&cfg.Follow, "follow", false, "Keep polling the journal after catching up")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Journal poll interval with -follow")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run replays the selected projections until caught up, or until the context
// ends when following.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceProjector, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	appliers := []projection.Applier{
		projection.NewOrderSummary(store.DB()),
		projection.NewServiceBoard(store.DB()),
		projection.NewSlaDashboard(store.DB()),
	}
	if cfg.Projection != "" {
		var selected []projection.Applier
		for _, applier := range appliers {
			if applier.Name() == cfg.Projection {
				selected = append(selected, applier)
			}
		}
		if len(selected) == 0 {
			return fmt.Errorf("unknown projection %q", cfg.Projection)
		}
		appliers = selected
	}

	runners := make([]*projection.Runner, 0, len(appliers))
	for _, applier := range appliers {
		runners = append(runners, projection.NewRunner(store, store, applier, projection.WithBatchSize(cfg.BatchSize)))
	}

	// The reset applies to the first pass only; follow passes resume from
	// the checkpoint.
	reset := cfg.Reset
	for {
		for i, runner := range runners {
			if err := runner.Run(ctx, reset); err != nil {
				return fmt.Errorf("replay %s: %w", appliers[i].Name(), err)
			}
		}
		reset = false

		if !cfg.Follow {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.PollInterval):
		}
	}
}
