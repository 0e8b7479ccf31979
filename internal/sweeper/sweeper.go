// Package sweeper runs periodic housekeeping jobs such as purging expired
// session tokens and evicting idle conversations.
package sweeper

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one named housekeeping task. Run returns how many items it removed.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

type Sweeper struct {
	jobs     []Job
	interval time.Duration
	limit    int
	clock    clockwork.Clock
	logger   *zap.SugaredLogger
}

// New returns a Sweeper ticking every interval. At most limit jobs run at
// once; limit <= 0 means no bound.
func New(interval time.Duration, limit int, clock clockwork.Clock, logger *zap.SugaredLogger, jobs ...Job) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{jobs: jobs, interval: interval, limit: limit, clock: clock, logger: logger}
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	t := s.clock.NewTicker(s.interval)
	defer t.Stop()
	s.logger.Infow("sweeper started", "interval", s.interval.String(), "jobs", len(s.jobs))
	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("sweeper stopped")
			return
		case <-t.Chan():
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes every job once and waits for all of them. A failing job
// is logged and does not cancel the others.
func (s *Sweeper) RunOnce(ctx context.Context) {
	var g errgroup.Group
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	for _, job := range s.jobs {
		g.Go(func() error {
			n, err := job.Run(ctx)
			if err != nil {
				s.logger.Errorw("sweep job failed", "job", job.Name, "err", err)
				return nil
			}
			if n > 0 {
				s.logger.Infow("sweep job done", "job", job.Name, "removed", n)
			}
			return nil
		})
	}
	_ = g.Wait()
}
