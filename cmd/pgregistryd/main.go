package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pgregistry/pkg/cluster"
	"pgregistry/pkg/health"
	"pgregistry/pkg/lock"
	"pgregistry/pkg/log"
	"pgregistry/pkg/metrics"
	"pgregistry/pkg/monitor"
	"pgregistry/pkg/registry"
	"pgregistry/pkg/transport"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pgregistryd",
	Short:   "pgregistryd runs a process-group registry node",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("pgregistryd %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

// serveCmd covers both "bootstrap a cluster" and "join one": the only
// difference is whether --join names any seeds, exactly like memberlist
// itself draws that line.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a registry node, optionally joining an existing cluster via --join",
	Long: `Start a registry node.

With no --join flag this bootstraps a new, single-node cluster. With
--join, it gossips through the given seed addresses to find and merge
with an already-running cluster.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("node-id", "", "Unique node ID (required)")
	serveCmd.Flags().String("gossip-addr", "127.0.0.1:7946", "Address memberlist binds to for gossip")
	serveCmd.Flags().String("rpc-addr", "127.0.0.1:7947", "Address the peer gRPC service listens on")
	serveCmd.Flags().String("advertise-addr", "", "Gossip address advertised to peers (defaults to --gossip-addr, useful behind NAT)")
	serveCmd.Flags().String("admin-addr", "127.0.0.1:7948", "Address the health/metrics HTTP server listens on")
	serveCmd.Flags().StringSlice("join", nil, "Seed addresses of an existing cluster to join")
	serveCmd.MarkFlagRequired("node-id")
}

func runServe(cmd *cobra.Command, _ []string) error {
	nodeID, _ := cmd.Flags().GetString("node-id")
	gossipAddr, _ := cmd.Flags().GetString("gossip-addr")
	rpcAddr, _ := cmd.Flags().GetString("rpc-addr")
	advertiseAddr, _ := cmd.Flags().GetString("advertise-addr")
	adminAddr, _ := cmd.Flags().GetString("admin-addr")
	seeds, _ := cmd.Flags().GetStringSlice("join")

	gossipHost, gossipPort, err := splitHostPort(gossipAddr)
	if err != nil {
		return fmt.Errorf("invalid --gossip-addr: %w", err)
	}

	clusterCfg := cluster.Config{
		NodeName: nodeID,
		BindAddr: gossipHost,
		BindPort: gossipPort,
		RPCAddr:  rpcAddr,
		Seeds:    seeds,
	}
	if advertiseAddr != "" {
		advHost, advPort, err := splitHostPort(advertiseAddr)
		if err != nil {
			return fmt.Errorf("invalid --advertise-addr: %w", err)
		}
		clusterCfg.AdvertiseAddr, clusterCfg.AdvertisePort = advHost, advPort
	}

	logger := log.WithNodeID(nodeID)
	healthReg := health.NewRegistry("cluster", "rpc")

	clusterAdapter, err := cluster.New(clusterCfg)
	if err != nil {
		return fmt.Errorf("start cluster substrate: %w", err)
	}
	defer clusterAdapter.Shutdown()
	healthReg.Set("cluster", true, "joined")

	peer := transport.NewPeer(clusterAdapter)
	defer peer.Close()
	defer peer.Stop()

	prober := monitor.NewProber(clusterAdapter, monitor.Config{})
	// granter is this node's single authority for groups it is elected
	// coordinator of; both a local mutation's own Locker and a peer's
	// AcquireLock/ReleaseLock RPC must funnel through the same instance, or
	// the two never mutually exclude (see pkg/lock/lock.go).
	granter := lock.NewGranter()
	locker := lock.New(clusterAdapter, peer, granter)

	svc := registry.NewService(registry.Config{
		Cluster: clusterAdapter,
		Peer:    peer,
		Monitor: prober,
		Lock:    locker,
		Granter: granter,
	})

	// A panic in the actor loop is logged rather than crashing the whole
	// daemon; the admin endpoints and gRPC listener stay up so operators can
	// see the node went dark instead of losing the process outright.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("registry actor loop panicked")
			}
		}()
		svc.Run()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("registry service did not shut down cleanly")
		}
	}()

	lis, err := net.Listen("tcp", rpcAddr)
	if err != nil {
		return fmt.Errorf("listen on --rpc-addr %s: %w", rpcAddr, err)
	}
	interceptor := transport.LoggingInterceptor(logger)
	go func() {
		if err := peer.Serve(lis, svc, interceptor); err != nil {
			logger.Error().Err(err).Msg("peer RPC server stopped")
		}
	}()
	healthReg.Set("rpc", true, "listening on "+rpcAddr)
	logger.Info().Str("rpc_addr", rpcAddr).Str("gossip_addr", gossipAddr).Msg("registry node started")

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthReg.HealthzHandler())
	mux.HandleFunc("/readyz", healthReg.ReadyzHandler())
	mux.HandleFunc("/livez", healthReg.LivezHandler())
	mux.Handle("/metrics", metrics.Handler())

	collector := metrics.NewCollector(svc)
	collector.Start(5 * time.Second)
	defer collector.Stop()

	adminSrv := &http.Server{Addr: adminAddr, Handler: mux}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin HTTP server stopped")
		}
	}()
	defer adminSrv.Close()
	logger.Info().Str("admin_addr", adminAddr).Msg("admin endpoints ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")
	return nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	if port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("port %d out of range", port)
	}
	return host, port, nil
}
