package orchestrator_test

import (
	"testing"

	"replicore/internal/orchestrator"
	"replicore/internal/segmentedlog"
)

func TestOrchestratorWiresSchedulerAndCompactionSweeps(t *testing.T) {
	o, err := orchestrator.New(orchestrator.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = o.Stop() })

	l := segmentedlog.New(segmentedlog.Config{Dir: t.TempDir(), Base: "seg"})
	if err := l.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	if err := o.AddCompactionJob("log-a", "* * * * *", l, func() int64 { return 0 }); err != nil {
		t.Fatalf("AddCompactionJob: %v", err)
	}
	if err := o.UpdateCompactionJob("log-a", "0 * * * *", l, func() int64 { return 0 }); err != nil {
		t.Fatalf("UpdateCompactionJob: %v", err)
	}
	o.RemoveCompactionJob("log-a")
	o.RemoveCompactionJob("log-nonexistent") // no-op

	o.Start()

	if err := o.Scheduler.AddJob("noop", "* * * * *", func() {}); err != nil {
		t.Fatalf("Scheduler.AddJob: %v", err)
	}
}
