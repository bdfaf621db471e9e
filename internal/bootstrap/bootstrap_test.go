package bootstrap_test

import (
	"testing"
	"time"

	"replicore/internal/bootstrap"
	"replicore/internal/executor"
)

func TestNewBootstrapsSingleNodeAndBecomesLeader(t *testing.T) {
	exec := executor.New(nil)
	if err := exec.Register(executor.OperationId{Name: "echo", Type: executor.COMMAND}, func(c executor.Commit) ([]byte, error) {
		return c.Payload, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	n, err := bootstrap.New(bootstrap.Config{
		Dir:         t.TempDir(),
		NodeID:      "node-1",
		ClusterAddr: "127.0.0.1:0",
		Bootstrap:   true,
	}, exec, nil)
	if err != nil {
		t.Fatalf("bootstrap.New: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = n.Stop() })

	deadline := time.Now().Add(5 * time.Second)
	for !n.IsLeader() {
		if time.Now().After(deadline) {
			t.Fatal("node never became leader")
		}
		time.Sleep(20 * time.Millisecond)
	}

	commit := executor.Commit{
		OpId:    executor.OperationId{Name: "echo", Type: executor.COMMAND},
		Payload: []byte("hello"),
	}
	result, err := n.Raft.Apply(t.Context(), commit, n.ApplyTimeout)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(result) != "hello" {
		t.Fatalf("Apply result = %q, want %q", result, "hello")
	}
}
