package orchestrator

import (
	"fmt"
	"log/slog"
	"time"

	"replicore/internal/logging"
	"replicore/internal/segmentedlog"
)

// Config configures an Orchestrator's ambient wall-clock scheduling.
type Config struct {
	// MaxConcurrentJobs caps how many scheduled jobs run at once. Defaults
	// to 4 if zero or negative.
	MaxConcurrentJobs int
	// Now supplies the wall clock used for job bookkeeping (StartedAt,
	// CompletedAt). Defaults to time.Now. Tests may override it.
	Now    func() time.Time
	Logger *slog.Logger
}

// Orchestrator owns the ambient, wall-clock-driven maintenance that runs
// alongside a replicore node: an arbitrary-job cron Scheduler, plus a
// cronRotationManager dedicated to segmentedlog compaction sweeps. Both are
// deliberately separate from the executor's logical-time scheduler (§9,
// Logical vs wall clock) — gocron reads the real clock, which the
// deterministic core may never do.
type Orchestrator struct {
	Scheduler *Scheduler
	rotation  *cronRotationManager
	logger    *slog.Logger
}

// New creates an Orchestrator. Call Start to begin executing jobs.
func New(cfg Config) (*Orchestrator, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := logging.Default(cfg.Logger).With("component", "orchestrator")

	sched, err := newScheduler(logger, cfg.MaxConcurrentJobs, now)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	rotation, err := newCronRotationManager(logger)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	return &Orchestrator{Scheduler: sched, rotation: rotation, logger: logger}, nil
}

// AddCompactionJob registers a cron-driven compaction sweep for target,
// keyed by logID. retain reports the highest index it is currently safe to
// compact away; it is called fresh on every tick. Once a sweep compacts a
// log's prefix, it also zstd-compresses any sealed segment left behind
// (segmentedlog.Log.CompressSealed), per §10.7.
func (o *Orchestrator) AddCompactionJob(logID, cronExpr string, target *segmentedlog.Log, retain RetentionFunc) error {
	return o.rotation.addJob(logID, cronExpr, target, retain)
}

// RemoveCompactionJob stops and removes the compaction sweep for logID, if
// one is registered.
func (o *Orchestrator) RemoveCompactionJob(logID string) {
	o.rotation.removeJob(logID)
}

// UpdateCompactionJob replaces the compaction sweep for logID with a new
// cron schedule.
func (o *Orchestrator) UpdateCompactionJob(logID, cronExpr string, target *segmentedlog.Log, retain RetentionFunc) error {
	return o.rotation.updateJob(logID, cronExpr, target, retain)
}

// Start begins executing all registered jobs, both ad hoc (Scheduler) and
// compaction sweeps (cronRotationManager).
func (o *Orchestrator) Start() {
	o.Scheduler.Start()
	o.rotation.start()
}

// Stop shuts down both schedulers, waiting for in-flight jobs to finish.
func (o *Orchestrator) Stop() error {
	schedErr := o.Scheduler.Stop()
	rotErr := o.rotation.stop()
	if schedErr != nil {
		return schedErr
	}
	return rotErr
}
