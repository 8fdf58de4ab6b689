package maintenance

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flx-it/assistbot/core/logger"
	"log/slog"

	"github.com/flx-it/assistbot/internal/chat"
	"github.com/flx-it/assistbot/internal/session"
)

// Options configures the background sweeps.
type Options struct {
	Sessions          session.Store
	Artifacts         *chat.ArtifactStore
	SessionTTL        time.Duration
	ArtifactRetention time.Duration
}

// Runner schedules periodic cleanup of idle sessions and stale artifacts.
type Runner struct {
	cron *cron.Cron
	opts Options
}

// New builds the runner with its schedule registered but not started.
func New(opts Options) *Runner {
	r := &Runner{cron: cron.New(), opts: opts}

	if opts.Sessions != nil && opts.SessionTTL > 0 {
		_, _ = r.cron.AddFunc("@every 10m", func() {
			removed := opts.Sessions.Sweep(opts.SessionTTL)
			if removed > 0 {
				logger.SESS.Info("session sweep",
					slog.String("event", "maintenance.sessions"),
					slog.Int("collapsed", removed),
				)
			}
		})
	}
	if opts.Artifacts != nil && opts.ArtifactRetention > 0 {
		_, _ = r.cron.AddFunc("@every 1h", func() {
			opts.Artifacts.Sweep(opts.ArtifactRetention)
		})
	}
	return r
}

// Start launches the scheduler.
func (r *Runner) Start() {
	r.cron.Start()
	logger.SESS.Debug("maintenance started",
		slog.String("event", "maintenance.start"),
	)
}

// Stop halts the scheduler and waits for running jobs.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
