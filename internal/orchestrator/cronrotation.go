package orchestrator

import (
	"fmt"
	"log/slog"

	"replicore/internal/segmentedlog"

	"github.com/go-co-op/gocron/v2"
)

// RetentionFunc reports the highest log index it is currently safe to
// compact away (e.g. the index of the last durable snapshot). A cron
// compaction sweep calls it fresh on every tick rather than caching a
// stale frontier.
type RetentionFunc func() int64

// cronRotationManager runs a background wall-clock-driven compaction sweep
// over one or more segmentedlog.Logs, on cron schedules independent of the
// executor's deterministic logical-time scheduler. Segment rotation itself
// happens transparently inside segmentedlog.Log.Append under its
// RotationPolicy; what this manager drives is periodic retention cleanup —
// compacting away log prefixes a RetentionFunc says are no longer needed.
type cronRotationManager struct {
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job // logID → job
	logger    *slog.Logger
}

func newCronRotationManager(logger *slog.Logger) (*cronRotationManager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create cron scheduler: %w", err)
	}
	return &cronRotationManager{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		logger:    logger,
	}, nil
}

// addJob registers a cron compaction sweep for a log.
func (m *cronRotationManager) addJob(logID, cronExpr string, target *segmentedlog.Log, retain RetentionFunc) error {
	if _, exists := m.jobs[logID]; exists {
		return fmt.Errorf("cron compaction job already exists for log %s", logID)
	}

	j, err := m.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(m.compactLog, logID, target, retain),
		gocron.WithName(fmt.Sprintf("cron-compact-%s", logID)),
	)
	if err != nil {
		return fmt.Errorf("create cron compaction job for log %s: %w", logID, err)
	}

	m.jobs[logID] = j
	m.logger.Info("cron compaction job added", "log", logID, "cron", cronExpr)
	return nil
}

// removeJob stops and removes the cron compaction job for a log.
func (m *cronRotationManager) removeJob(logID string) {
	j, ok := m.jobs[logID]
	if !ok {
		return
	}
	if err := m.scheduler.RemoveJob(j.ID()); err != nil {
		m.logger.Warn("failed to remove cron compaction job", "log", logID, "error", err)
	}
	delete(m.jobs, logID)
	m.logger.Info("cron compaction job removed", "log", logID)
}

// updateJob replaces the cron compaction job for a log with a new schedule.
func (m *cronRotationManager) updateJob(logID, cronExpr string, target *segmentedlog.Log, retain RetentionFunc) error {
	m.removeJob(logID)
	return m.addJob(logID, cronExpr, target, retain)
}

// start begins executing all registered cron jobs.
func (m *cronRotationManager) start() {
	m.scheduler.Start()
	m.logger.Info("cron compaction scheduler started", "jobs", len(m.jobs))
}

// stop shuts down the scheduler and waits for running jobs to finish.
func (m *cronRotationManager) stop() error {
	return m.scheduler.Shutdown()
}

// compactLog asks retain for the current safe-to-compact frontier and
// compacts away target's entries below it (the entry at the frontier is
// kept), if any progress would be made.
func (m *cronRotationManager) compactLog(logID string, target *segmentedlog.Log, retain RetentionFunc) {
	through := retain()
	if through <= 0 {
		m.logger.Debug("cron compaction: nothing retained yet, skipping", "log", logID)
		return
	}

	if err := target.Compact(through); err != nil {
		m.logger.Error("cron compaction: failed to compact log",
			"log", logID, "through", through, "error", err)
		return
	}

	m.logger.Info("cron compaction: compacted log", "log", logID, "through", through)

	if err := target.CompressSealed(); err != nil {
		m.logger.Error("cron compaction: failed to compress sealed segments",
			"log", logID, "error", err)
	}
}
