// cmd/kvnode is the main entrypoint for a replicated KV store node.
//
// Configuration is entirely via flags/environment so a single binary
// can serve any role in a static cluster — leader or follower is just
// a matter of which --leader-id is passed.
//
// Example — single node:
//
//	./kvnode --node-id 1 --addr :8080 --wal-path /var/kvstore/node1/wal.log
//
// Example — 3-node cluster, node 1 is leader:
//
//	./kvnode --node-id 1 --addr :8080 --leader-id 1 \
//	         --peers http://localhost:8081,http://localhost:8082
//	./kvnode --node-id 2 --addr :8081 --leader-id 1 \
//	         --peers http://localhost:8080,http://localhost:8082
//	./kvnode --node-id 3 --addr :8082 --leader-id 1 \
//	         --peers http://localhost:8080,http://localhost:8081
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"distributed-kvstore/internal/api"
	"distributed-kvstore/internal/clock"
	"distributed-kvstore/internal/cluster"
	"distributed-kvstore/internal/config"
	"distributed-kvstore/internal/metrics"
	"distributed-kvstore/internal/recovery"
	"distributed-kvstore/internal/replicate"
	"distributed-kvstore/internal/store"
	"distributed-kvstore/internal/wal"
)

func main() {
	root := &cobra.Command{
		Use:   "kvnode",
		Short: "Run a node of the replicated KV store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd)
		},
	}

	root.Flags().Uint64("node-id", 0, "this node's id")
	root.Flags().String("addr", "", "listen address (host:port)")
	root.Flags().Uint64("leader-id", 0, "current leader's node id")
	root.Flags().StringSlice("peers", nil, "comma-separated peer base URLs")
	root.Flags().String("wal-path", "", "path to the write-ahead log file")
	root.Flags().Int64("chaos-before-sync-ms", -1, "delay injected between WAL append and fsync")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	w, err := wal.Open(cfg.WALPath, cfg.ChaosDelay)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer w.Close()

	s := store.New()
	clk := clock.New()

	if err := recovery.Recover(cfg.WALPath, s, clk); err != nil {
		return fmt.Errorf("recovery: %w", err)
	}

	view := cluster.NewView(cfg.NodeID, cfg.LeaderID, cfg.Peers)
	m := metrics.New()

	httpClient := &http.Client{}
	replicator := replicate.New(view, httpClient)
	replicator.Start()
	defer replicator.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(), api.Recovery(), api.Metrics(m))

	handler := api.NewHandler(s, w, clk, view, replicator, m, httpClient)
	handler.Register(router)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("node %d listening on %s (leader=%d, peers=%v)", cfg.NodeID, cfg.Addr, cfg.LeaderID, cfg.Peers)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Printf("shutting down node %d", cfg.NodeID)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	return nil
}
