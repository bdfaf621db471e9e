// Package raftnode wires an *raftfsm.FSM into a running *raft.Raft and
// exposes the single entry point client code uses to submit a Commit:
// Apply. It is the seam between the deterministic executor core and the
// replicated log that drives it.
package raftnode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/raft"

	"replicore/internal/executor"
	"replicore/internal/logging"
	"replicore/internal/raftfsm"
	"replicore/internal/wire"
)

// ErrNotLeader is returned by Apply when this node is not the Raft leader
// and no ForwardFunc has been configured to relay the commit onward.
var ErrNotLeader = errors.New("raftnode: not leader")

// ForwardFunc relays an already-encoded commit to the current leader and
// returns the leader's apply result. bootstrap.New does not set one;
// leaving it nil means non-leader Apply calls fail fast with ErrNotLeader.
type ForwardFunc func(ctx context.Context, data []byte) ([]byte, error)

// Node wraps a *raft.Raft plus the raftfsm.FSM backing it.
type Node struct {
	raft   *raft.Raft
	fsm    *raftfsm.FSM
	fwd    ForwardFunc
	logger *slog.Logger
}

// New wraps an already-constructed raft.Raft (via raft.NewRaft, with fsm
// passed as its FSM) for Commit submission.
func New(r *raft.Raft, fsm *raftfsm.FSM, logger *slog.Logger) *Node {
	return &Node{
		raft:   r,
		fsm:    fsm,
		logger: logging.Default(logger).With("component", "raftnode"),
	}
}

// SetForwardFunc configures how a non-leader node relays a Commit to the
// current leader. Safe to call at any time.
func (n *Node) SetForwardFunc(fn ForwardFunc) {
	n.fwd = fn
}

// ApplyFn returns the func(ctx, data) error cluster.Server.SetApplyFn wants:
// it applies an already-encoded commit locally, discarding the handler's
// result.
func (n *Node) ApplyFn() func(ctx context.Context, data []byte) error {
	return func(ctx context.Context, data []byte) error {
		_, err := n.applyEncoded(ctx, data, 0)
		return err
	}
}

// Apply encodes commit, submits it to the Raft log, and waits for it to
// commit and apply. If this node is not the leader, the commit is relayed
// via ForwardFunc if one is configured; otherwise Apply fails with
// ErrNotLeader without touching the network.
func (n *Node) Apply(ctx context.Context, c executor.Commit, timeout time.Duration) ([]byte, error) {
	data, err := wire.EncodeCommit(c)
	if err != nil {
		return nil, err
	}

	if n.raft.State() != raft.Leader {
		if n.fwd == nil {
			return nil, ErrNotLeader
		}
		return n.fwd(ctx, data)
	}
	return n.applyEncoded(ctx, data, timeout)
}

func (n *Node) applyEncoded(ctx context.Context, data []byte, timeout time.Duration) ([]byte, error) {
	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("raftnode: apply: %w", err)
	}

	resp := future.Response()
	result, ok := resp.(*raftfsm.ApplyResult)
	if !ok {
		return nil, fmt.Errorf("raftnode: apply: unexpected fsm response type %T", resp)
	}
	return result.Result, result.Err
}
