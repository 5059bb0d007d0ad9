package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/larder/internal/config"
	"github.com/hpungsan/larder/internal/db"
)

// SweepOutput contains the result of the Sweep operation.
type SweepOutput struct {
	Swept   int    `json:"swept"`
	Message string `json:"message"`
}

// Sweep permanently deletes ledgers whose TTL deadline has passed.
func Sweep(ctx context.Context, database *sql.DB) (*SweepOutput, error) {
	count, err := db.SweepExpired(ctx, database, now())
	if err != nil {
		return nil, err
	}

	return &SweepOutput{
		Swept:   count,
		Message: formatSweepMessage(count),
	}, nil
}

// formatSweepMessage creates a human-readable message for the sweep result.
func formatSweepMessage(count int) string {
	if count == 0 {
		return "No expired ledgers to sweep"
	}

	ledgerWord := "ledger"
	if count > 1 {
		ledgerWord = "ledgers"
	}

	return fmt.Sprintf("Permanently deleted %d expired %s", count, ledgerWord)
}

// Sweeper runs Sweep on a fixed interval.
type Sweeper struct {
	database *sql.DB
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a Sweeper using cfg.SweepInterval (60s when unset).
func NewSweeper(database *sql.DB, cfg *config.Config, logger *zap.Logger) *Sweeper {
	interval := cfg.SweepInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{database: database, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweepOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	out, err := Sweep(ctx, s.database)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("ledger sweep failed", zap.Error(err))
		}
		return
	}
	if out.Swept > 0 {
		s.logger.Info("ledger sweep", zap.Int("swept", out.Swept))
	}
}
