// Package bootstrap wires together the pieces a running replicore node
// needs: an Executor, the raftfsm/raftnode bridge, a persistent single-node
// or multi-node hashicorp/raft instance, and the cluster gRPC server; it
// does not construct an orchestrator. It is the seam cmd/replicore drives; nothing in
// internal/executor, internal/raftfsm, or internal/raftnode needs to know
// how any of this is assembled in a real process.
package bootstrap

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	hraft "github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"

	"replicore/internal/cluster"
	"replicore/internal/executor"
	"replicore/internal/logging"
	"replicore/internal/raftfsm"
	"replicore/internal/raftnode"
)

// Config configures a single replicore node. It is a plain struct passed by
// value into New, the same shape the teacher uses for its on-disk component
// configs: no declarative Store/Load/Save layer, just fields a CLI flag set
// fills in directly.
type Config struct {
	// Dir is the node's data directory: Raft log/stable store, snapshots.
	Dir string
	// FileMode is the permission used when creating Dir. Defaults to 0o700.
	FileMode fs.FileMode

	// NodeID is this node's unique Raft server ID.
	NodeID string
	// ClusterAddr is the listen address for the cluster gRPC port.
	ClusterAddr string
	// LocalAddr is the advertised address other nodes use to reach this
	// node's cluster port. Defaults to ClusterAddr if empty.
	LocalAddr string
	// Bootstrap, if true, bootstraps a brand-new single-node cluster with
	// this node as the only voter. Set for the first node only; every node
	// joining an existing cluster leaves this false and is added through
	// cluster.JoinCluster instead.
	Bootstrap bool

	// TLS configures mutual TLS on the cluster port. Nil disables TLS.
	TLS *cluster.ClusterTLS

	ApplyTimeout time.Duration
	Logger       *slog.Logger
}

// Node is a fully wired, running replicore node: the deterministic
// executor, its Raft-replicated log, and the cluster transport carrying
// Raft RPCs and membership changes.
type Node struct {
	Executor *executor.Executor
	FSM      *raftfsm.FSM
	Raft     *raftnode.Node
	Cluster  *cluster.Server
	// ApplyTimeout is the default timeout callers should pass to
	// Raft.Apply; resolved from Config.ApplyTimeout, defaulting to 10s.
	ApplyTimeout time.Duration

	raft   *hraft.Raft
	logger *slog.Logger
}

// New assembles a Node from cfg and exec, registering handlers on exec
// before calling New is the caller's responsibility — bootstrap only wires
// the replication machinery around whatever operations the caller already
// registered.
func New(cfg Config, exec *executor.Executor, snap raftfsm.Snapshotter) (*Node, error) {
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o700
	}
	if cfg.ApplyTimeout == 0 {
		cfg.ApplyTimeout = 10 * time.Second
	}
	logger := logging.Default(cfg.Logger).With("component", "bootstrap", "node", cfg.NodeID)

	if err := os.MkdirAll(cfg.Dir, cfg.FileMode); err != nil {
		return nil, fmt.Errorf("bootstrap: create data dir: %w", err)
	}

	fsm := raftfsm.New(exec, snap, cfg.Logger)

	srv, err := cluster.New(cluster.Config{
		ClusterAddr: cfg.ClusterAddr,
		LocalAddr:   cfg.LocalAddr,
		NodeID:      cfg.NodeID,
		TLS:         cfg.TLS,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create cluster server: %w", err)
	}

	transport := srv.Transport()

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.Dir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.Dir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open raft stable store: %w", err)
	}
	snapStore, err := hraft.NewFileSnapshotStore(cfg.Dir, 3, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open raft snapshot store: %w", err)
	}

	raftConf := hraft.DefaultConfig()
	raftConf.LocalID = hraft.ServerID(cfg.NodeID)

	r, err := hraft.NewRaft(raftConf, fsm, logStore, stableStore, snapStore, transport)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create raft instance: %w", err)
	}

	if cfg.Bootstrap {
		advertised := cfg.LocalAddr
		if advertised == "" {
			advertised = cfg.ClusterAddr
		}
		bootConf := hraft.Configuration{
			Servers: []hraft.Server{
				{ID: hraft.ServerID(cfg.NodeID), Address: hraft.ServerAddress(advertised)},
			},
		}
		if err := r.BootstrapCluster(bootConf).Error(); err != nil {
			return nil, fmt.Errorf("bootstrap: bootstrap raft cluster: %w", err)
		}
	}

	srv.SetRaft(r)

	rnode := raftnode.New(r, fsm, cfg.Logger)
	srv.SetApplyFn(rnode.ApplyFn())
	// No ForwardFunc is wired: relaying a non-leader's Apply to the current
	// leader needs a result-returning RPC, and cluster.Server only exposes
	// an error-returning applyFn hook (the protobuf-based ForwardApply RPC
	// the teacher had is gone — see DESIGN.md). A non-leader Apply call
	// fails fast with raftnode.ErrNotLeader; callers are expected to retry
	// against the leader address from Node.LeaderInfo.

	n := &Node{
		Executor:     exec,
		FSM:          fsm,
		Raft:         rnode,
		Cluster:      srv,
		ApplyTimeout: cfg.ApplyTimeout,
		raft:         r,
		logger:       logger,
	}
	return n, nil
}

// Start begins serving the cluster gRPC port. Call after New.
func (n *Node) Start() error {
	n.logger.Info("starting cluster server")
	return n.Cluster.Start()
}

// Stop gracefully shuts down the cluster server and the underlying Raft
// instance.
func (n *Node) Stop() error {
	n.logger.Info("stopping node")
	n.Cluster.Stop()
	return n.raft.Shutdown().Error()
}

// IsLeader reports whether this node currently holds Raft leadership.
func (n *Node) IsLeader() bool {
	return n.raft.State() == hraft.Leader
}

// LeaderInfo returns the current Raft leader's advertised address and
// server ID, or two empty strings if there is no known leader.
func (n *Node) LeaderInfo() (address, id string) {
	return n.Cluster.LeaderInfo()
}
