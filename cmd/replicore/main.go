// Command replicore runs a replicated state-machine node: a deterministic
// executor driven by a hashicorp/raft log, with a segmented on-disk log and
// ambient wall-clock maintenance around it.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof is intentionally available when --pprof flag is set
	"os"
	"os/signal"
	"time"

	"replicore/internal/bootstrap"
	"replicore/internal/cluster"
	"replicore/internal/executor"
	"replicore/internal/logging"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // filtering is done by ComponentFilterHandler below
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "replicore",
		Short: "Replicated state-machine runtime",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			pprofAddr, _ := cmd.Flags().GetString("pprof")
			if pprofAddr != "" {
				go func() {
					logger.Info("pprof server listening", "addr", pprofAddr)
					pprofSrv := &http.Server{Addr: pprofAddr, ReadHeaderTimeout: 10 * time.Second}
					if err := pprofSrv.ListenAndServe(); err != nil {
						logger.Error("pprof server error", "error", err)
					}
				}()
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().String("home", "", "data directory (default: ./replicore-data)")
	rootCmd.PersistentFlags().String("pprof", "", "pprof HTTP server address (e.g. localhost:6060). WARNING: exposes CPU/memory profiles and goroutine dumps — bind to loopback only, never expose publicly")

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start a replicore node",
		RunE: func(cmd *cobra.Command, args []string) error {
			homeFlag, _ := cmd.Flags().GetString("home")
			nodeID, _ := cmd.Flags().GetString("node-id")
			clusterAddr, _ := cmd.Flags().GetString("cluster-addr")
			localAddr, _ := cmd.Flags().GetString("local-addr")
			bootstrapCluster, _ := cmd.Flags().GetBool("bootstrap")
			joinAddr, _ := cmd.Flags().GetString("join")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return run(ctx, logger, serverArgs{
				home:        resolveHome(homeFlag),
				nodeID:      nodeID,
				clusterAddr: clusterAddr,
				localAddr:   localAddr,
				bootstrap:   bootstrapCluster,
				joinAddr:    joinAddr,
			})
		},
	}
	serverCmd.Flags().String("node-id", "", "this node's Raft server ID (required)")
	serverCmd.Flags().String("cluster-addr", ":4565", "listen address for the cluster gRPC port")
	serverCmd.Flags().String("local-addr", "", "advertised cluster address (default: cluster-addr)")
	serverCmd.Flags().Bool("bootstrap", false, "bootstrap a brand-new single-node cluster with this node as the only voter")
	serverCmd.Flags().String("join", "", "cluster address of an existing leader to join")
	_ = serverCmd.MarkFlagRequired("node-id")

	joinCmd := &cobra.Command{
		Use:   "join",
		Short: "Ask a running leader to add this (already-running) node as a Raft voter",
		RunE: func(cmd *cobra.Command, args []string) error {
			leaderAddr, _ := cmd.Flags().GetString("leader")
			nodeID, _ := cmd.Flags().GetString("node-id")
			nodeAddr, _ := cmd.Flags().GetString("node-addr")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			ctls := cluster.NewClusterTLS()
			if err := cluster.JoinCluster(ctx, leaderAddr, nodeID, nodeAddr, ctls); err != nil {
				return fmt.Errorf("join cluster: %w", err)
			}
			logger.Info("join request accepted", "leader", leaderAddr, "node", nodeID)
			return nil
		},
	}
	joinCmd.Flags().String("leader", "", "cluster address of the current leader (required)")
	joinCmd.Flags().String("node-id", "", "this node's Raft server ID (required)")
	joinCmd.Flags().String("node-addr", "", "this node's advertised cluster address (required)")
	_ = joinCmd.MarkFlagRequired("leader")
	_ = joinCmd.MarkFlagRequired("node-id")
	_ = joinCmd.MarkFlagRequired("node-addr")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(serverCmd, joinCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveHome returns the data directory the node should use: the flag
// value if set, otherwise a directory relative to the working directory.
func resolveHome(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return "replicore-data"
}

type serverArgs struct {
	home        string
	nodeID      string
	clusterAddr string
	localAddr   string
	bootstrap   bool
	joinAddr    string
}

// run assembles and runs a single replicore node until ctx is canceled.
// Operation registration is left to the embedder: replicore is a runtime,
// not a fixed application, so main only wires the ambient stack. The
// executor built here has no operations registered, which is sufficient to
// prove out cluster formation.
func run(ctx context.Context, logger *slog.Logger, args serverArgs) error {
	exec := executor.New(logger)

	node, err := bootstrap.New(bootstrap.Config{
		Dir:         args.home,
		NodeID:      args.nodeID,
		ClusterAddr: args.clusterAddr,
		LocalAddr:   args.localAddr,
		Bootstrap:   args.bootstrap,
		Logger:      logger,
	}, exec, nil)
	if err != nil {
		return fmt.Errorf("bootstrap node: %w", err)
	}

	if err := node.Start(); err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	logger.Info("replicore node started", "node", args.nodeID, "addr", args.clusterAddr)

	if args.joinAddr != "" {
		advertised := args.localAddr
		if advertised == "" {
			advertised = args.clusterAddr
		}
		joinCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := cluster.JoinCluster(joinCtx, args.joinAddr, args.nodeID, advertised, cluster.NewClusterTLS())
		cancel()
		if err != nil {
			logger.Error("join cluster request failed", "leader", args.joinAddr, "error", err)
		} else {
			logger.Info("join cluster request accepted", "leader", args.joinAddr)
		}
	}

	<-ctx.Done()

	logger.Info("shutting down node")
	if err := node.Stop(); err != nil {
		return fmt.Errorf("stop node: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
