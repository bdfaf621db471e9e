// Package raftfsm bridges hashicorp/raft's replicated log to an
// *executor.Executor: every committed raft.Log entry is decoded into an
// executor.Commit and applied in log order on every voter, which is what
// makes the executor's handlers and timers deterministic across the
// cluster.
package raftfsm

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/raft"

	"replicore/internal/executor"
	"replicore/internal/logging"
	"replicore/internal/wire"
)

// Snapshotter lets a service persist and restore whatever additional state
// it keeps outside the registered handlers' closures (if any). A nil
// Snapshotter makes every FSM snapshot empty, which is correct for services
// whose entire state lives in the segmented log Raft already replicates.
type Snapshotter interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// ApplyResult is what FSM.Apply returns as the raft apply-future's response.
// raftnode.Node type-asserts this back out after future.Response().
type ApplyResult struct {
	Result []byte
	Err    error
}

// FSM adapts an *executor.Executor to raft.FSM.
type FSM struct {
	exec   *executor.Executor
	snap   Snapshotter
	logger *slog.Logger
}

// New creates an FSM driving exec. snap may be nil.
func New(exec *executor.Executor, snap Snapshotter, logger *slog.Logger) *FSM {
	return &FSM{
		exec:   exec,
		snap:   snap,
		logger: logging.Default(logger).With("component", "raftfsm"),
	}
}

// Apply decodes l.Data into a Commit and applies it to the executor. The
// returned value is always an *ApplyResult; raftnode.Node is the only
// caller expected to unwrap it.
func (f *FSM) Apply(l *raft.Log) any {
	commit, err := wire.DecodeCommit(l.Data)
	if err != nil {
		return &ApplyResult{Err: fmt.Errorf("raftfsm: apply index %d: %w", l.Index, err)}
	}
	result, err := f.exec.Apply(commit)
	return &ApplyResult{Result: result, Err: err}
}

// Snapshot delegates to the configured Snapshotter, or produces an empty
// snapshot if none was configured.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	if f.snap == nil {
		return &fsmSnapshot{}, nil
	}
	data, err := f.snap.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("raftfsm: snapshot: %w", err)
	}
	return &fsmSnapshot{data: data}, nil
}

// Restore delegates to the configured Snapshotter. With none configured,
// restore is a no-op: there is nothing outside the replicated log to
// restore.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("raftfsm: restore: read: %w", err)
	}
	if f.snap == nil {
		return nil
	}
	if err := f.snap.Restore(data); err != nil {
		return fmt.Errorf("raftfsm: restore: %w", err)
	}
	return nil
}

type fsmSnapshot struct {
	data []byte
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write(s.data); err != nil {
		sink.Cancel()
		return fmt.Errorf("raftfsm: persist snapshot: %w", err)
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
