package cluster_test

import (
	"testing"

	"replicore/internal/cluster"
)

func TestNewBindsPortAndStartStop(t *testing.T) {
	srv, err := cluster.New(cluster.Config{ClusterAddr: "127.0.0.1:0", NodeID: "node-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if srv.Addr() == "" {
		t.Fatal("Addr() empty after New")
	}

	// Transport must be created before Start registers the raft-grpc-transport
	// service, mirroring the documented New -> Transport -> Start lifecycle.
	srv.Transport()

	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)

	addr, id := srv.LeaderInfo()
	if addr != "" || id != "" {
		t.Fatalf("LeaderInfo before SetRaft = (%q, %q), want empty", addr, id)
	}
	if servers, err := srv.Servers(); err != nil || servers != nil {
		t.Fatalf("Servers before SetRaft = (%v, %v), want (nil, nil)", servers, err)
	}
	if stats := srv.LocalStats(); stats != nil {
		t.Fatalf("LocalStats before SetRaft = %v, want nil", stats)
	}
}

func TestAddVoterWithoutRaftErrors(t *testing.T) {
	srv, err := cluster.New(cluster.Config{ClusterAddr: "127.0.0.1:0", NodeID: "node-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(srv.Stop)

	if err := srv.AddVoter("node-2", "127.0.0.1:4566", 0); err == nil {
		t.Fatal("expected error adding voter before raft is initialized")
	}
}
