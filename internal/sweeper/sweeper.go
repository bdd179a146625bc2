// internal/sweeper/sweeper.go
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teems-ai/eve/internal/types"
)

// Sweeper prunes unconsumed uploads older than the TTL on a cron
// schedule.
type Sweeper struct {
	uploads  types.UploadStore
	schedule string
	ttl      time.Duration
	cron     *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a sweeper that runs on the given cron schedule and drops
// unconsumed uploads older than ttl.
func New(uploads types.UploadStore, schedule string, ttl time.Duration) *Sweeper {
	return &Sweeper{
		uploads:  uploads,
		schedule: schedule,
		ttl:      ttl,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the sweep as a cron entry and starts the ticker.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	slog.Info("upload sweeper started", "schedule", s.schedule, "ttl", s.ttl)
	return nil
}

// Sweep runs one prune pass immediately.
func (s *Sweeper) Sweep() {
	cutoff := time.Now().Add(-s.ttl)
	n, err := s.uploads.PruneBefore(context.Background(), cutoff)
	if err != nil {
		slog.Error("upload sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("pruned stale uploads", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
}

// Stop stops the cron ticker.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}
