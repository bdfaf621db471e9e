package raftnode_test

import (
	"context"
	"io"
	"testing"
	"time"

	hraft "github.com/hashicorp/raft"

	"replicore/internal/executor"
	"replicore/internal/raftfsm"
	"replicore/internal/raftnode"
	"replicore/internal/wire"
)

// newTestRaft creates a single-node in-memory raft instance that becomes
// leader immediately: no cluster, no network, just raft's log + FSM
// machinery, tight timeouts so a single-node election is near-instant.
func newTestRaft(t *testing.T, fsm hraft.FSM) *hraft.Raft {
	t.Helper()

	conf := hraft.DefaultConfig()
	conf.LocalID = "test-node"
	conf.LogOutput = io.Discard
	conf.HeartbeatTimeout = 50 * time.Millisecond
	conf.ElectionTimeout = 50 * time.Millisecond
	conf.LeaderLeaseTimeout = 50 * time.Millisecond

	logStore := hraft.NewInmemStore()
	stableStore := hraft.NewInmemStore()
	snapStore := hraft.NewInmemSnapshotStore()
	_, transport := hraft.NewInmemTransport("test-node")

	r, err := hraft.NewRaft(conf, fsm, logStore, stableStore, snapStore, transport)
	if err != nil {
		t.Fatalf("NewRaft: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Shutdown().Error(); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})

	boot := hraft.Configuration{
		Servers: []hraft.Server{{ID: "test-node", Address: transport.LocalAddr()}},
	}
	if err := r.BootstrapCluster(boot).Error(); err != nil {
		t.Fatalf("BootstrapCluster: %v", err)
	}

	select {
	case <-r.LeaderCh():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for leadership")
	}
	return r
}

func newTestNode(t *testing.T) (*raftnode.Node, *executor.Executor) {
	t.Helper()
	exec := executor.New(nil)
	if err := exec.Register(executor.OperationId{Name: "echo", Type: executor.COMMAND}, func(c executor.Commit) ([]byte, error) {
		return c.Payload, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	fsm := raftfsm.New(exec, nil, nil)
	r := newTestRaft(t, fsm)
	return raftnode.New(r, fsm, nil), exec
}

func TestNodeApplyRoundTripsThroughRaftLog(t *testing.T) {
	n, _ := newTestNode(t)

	commit := executor.Commit{
		OpId:    executor.OperationId{Name: "echo", Type: executor.COMMAND},
		Payload: []byte("hello"),
	}
	result, err := n.Apply(context.Background(), commit, 2*time.Second)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(result) != "hello" {
		t.Fatalf("Apply result = %q, want %q", result, "hello")
	}
}

func TestNodeApplyUnregisteredOperationSurfacesExecutorError(t *testing.T) {
	n, _ := newTestNode(t)

	commit := executor.Commit{
		OpId:    executor.OperationId{Name: "nope", Type: executor.COMMAND},
		Payload: []byte("x"),
	}
	if _, err := n.Apply(context.Background(), commit, 2*time.Second); err == nil {
		t.Fatal("expected an error for an unregistered operation")
	}
}

func TestNodeApplyFnAppliesEncodedCommitLocally(t *testing.T) {
	n, _ := newTestNode(t)

	commit := executor.Commit{
		OpId:    executor.OperationId{Name: "echo", Type: executor.COMMAND},
		Payload: []byte("forwarded"),
	}
	data, err := wire.EncodeCommit(commit)
	if err != nil {
		t.Fatalf("EncodeCommit: %v", err)
	}

	// ApplyFn is exactly what cluster.Server.SetApplyFn is handed: applying
	// an already-encoded commit that a peer forwarded to this (leader) node.
	if err := n.ApplyFn()(context.Background(), data); err != nil {
		t.Fatalf("ApplyFn: %v", err)
	}
}

func TestNodeSetForwardFuncNotUsedWhenLeader(t *testing.T) {
	exec := executor.New(nil)
	if err := exec.Register(executor.OperationId{Name: "echo", Type: executor.COMMAND}, func(c executor.Commit) ([]byte, error) {
		return c.Payload, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	fsm := raftfsm.New(exec, nil, nil)
	r := newTestRaft(t, fsm)
	n := raftnode.New(r, fsm, nil)

	called := false
	n.SetForwardFunc(func(ctx context.Context, data []byte) ([]byte, error) {
		called = true
		return []byte("forwarded-result"), nil
	})

	// This node is actually the leader (single-node cluster), so the forward
	// hook should NOT fire; Apply should go straight through raft.Apply.
	commit := executor.Commit{OpId: executor.OperationId{Name: "echo", Type: executor.COMMAND}, Payload: []byte("x")}
	if _, err := n.Apply(context.Background(), commit, 2*time.Second); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if called {
		t.Fatal("ForwardFunc should not be called when this node is the leader")
	}
}

func TestNodeApplyFailsWithoutForwardFuncWhenNotLeader(t *testing.T) {
	// Raft with no bootstrapped configuration never becomes leader, so every
	// Apply call should hit the not-leader path.
	exec := executor.New(nil)
	fsm := raftfsm.New(exec, nil, nil)

	conf := hraft.DefaultConfig()
	conf.LocalID = "solo"
	conf.LogOutput = io.Discard
	logStore := hraft.NewInmemStore()
	stableStore := hraft.NewInmemStore()
	snapStore := hraft.NewInmemSnapshotStore()
	_, transport := hraft.NewInmemTransport("solo")
	r, err := hraft.NewRaft(conf, fsm, logStore, stableStore, snapStore, transport)
	if err != nil {
		t.Fatalf("NewRaft: %v", err)
	}
	t.Cleanup(func() { _ = r.Shutdown().Error() })

	n := raftnode.New(r, fsm, nil)
	commit := executor.Commit{OpId: executor.OperationId{Name: "echo", Type: executor.COMMAND}, Payload: []byte("x")}
	if _, err := n.Apply(context.Background(), commit, 100*time.Millisecond); err != raftnode.ErrNotLeader {
		t.Fatalf("Apply on non-leader with no ForwardFunc = %v, want ErrNotLeader", err)
	}
}
