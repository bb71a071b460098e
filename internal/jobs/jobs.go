// Package jobs holds the periodic housekeeping tasks of the server.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RevocationPurger drops session revocations whose tokens have expired.
type RevocationPurger interface {
	PurgeRevocations() int
}

type LogPruner interface {
	PruneBefore(ctx context.Context, t time.Time) (int64, error)
}

// PurgeRevocationsJob keeps the sign-out revocation list small.
type PurgeRevocationsJob struct {
	auth   RevocationPurger
	logger *slog.Logger
}

func NewPurgeRevocationsJob(a RevocationPurger, logger *slog.Logger) *PurgeRevocationsJob {
	return &PurgeRevocationsJob{auth: a, logger: logger}
}

func (j *PurgeRevocationsJob) Run() {
	if n := j.auth.PurgeRevocations(); n > 0 {
		j.logger.Debug("purged session revocations", "count", n)
	}
}

// PruneGitLogsJob deletes git operation logs older than the retention.
type PruneGitLogsJob struct {
	logs      LogPruner
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewPruneGitLogsJob(logs LogPruner, retention time.Duration, logger *slog.Logger) *PruneGitLogsJob {
	return &PruneGitLogsJob{logs: logs, retention: retention, logger: logger, now: time.Now}
}

func (j *PruneGitLogsJob) Run() {
	if j.retention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := j.logs.PruneBefore(ctx, j.now().Add(-j.retention))
	if err != nil {
		j.logger.Error("prune git operation logs", "err", err)
		return
	}
	j.logger.Info("pruned git operation logs", "count", n)
}

// Scheduler wraps a cron runner with the server's jobs registered.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(a RevocationPurger, logs LogPruner, retention time.Duration, logger *slog.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddJob("@every 1m", NewPurgeRevocationsJob(a, logger)); err != nil {
		return nil, err
	}
	if _, err := c.AddJob("@daily", NewPruneGitLogsJob(logs, retention, logger)); err != nil {
		return nil, err
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) Len() int { return len(s.cron.Entries()) }
