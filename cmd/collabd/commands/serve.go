package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodius/graphsync/auth"
	"github.com/nodius/graphsync/cluster"
	"github.com/nodius/graphsync/config"
	"github.com/nodius/graphsync/logger"
	"github.com/nodius/graphsync/session"
	"github.com/nodius/graphsync/store/sqlite"
)

// ServeCmd starts the collaborative graph-editing backbone: the
// WebSocket session endpoint, optional cluster coordination, and
// background auto-save/eviction loops.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collab session server",
	RunE:  runServe,
}

func init() {
	ServeCmd.Flags().String("config", "", "path to a collabd.toml config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Initialize(cfg.Server.JSONLogs); err != nil {
		return err
	}
	log := logger.Logger

	st, err := sqlite.Open(sqlite.Options{
		Path:          cfg.Database.Path,
		JournalMode:   cfg.Database.JournalMode,
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
	}, log)
	if err != nil {
		return err
	}
	defer st.Close()

	var coord *cluster.Coordinator
	if cfg.Cluster.Enabled {
		coord, err = cluster.New(cluster.Config{
			PeerID:            cfg.Cluster.NodeID,
			Host:              "127.0.0.1",
			BasePort:          cfg.Cluster.BasePort,
			HeartbeatEvery:    time.Duration(cfg.Cluster.HeartbeatSeconds) * time.Second,
			DiscoverEvery:     time.Duration(cfg.Cluster.DiscoverySeconds) * time.Second,
			StaleAfter:        time.Duration(cfg.Cluster.StaleAfterSeconds) * time.Second,
			BroadcastRatePerS: cfg.Cluster.BroadcastRatePerS,
			DirectTimeout:     10 * time.Second,
		}, st, log, nil)
		if err != nil {
			return err
		}
		if err := coord.Start(context.Background()); err != nil {
			return err
		}
	}

	mgr := session.New(session.Config{
		AutoSaveInterval:    time.Duration(cfg.Server.FlushInterval) * time.Second,
		EvictionInterval:    time.Duration(cfg.Server.EvictInterval) * time.Second,
		MaxInstructionBatch: 20,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		HistoryRetention:    time.Duration(cfg.Server.HistoryRetentionHours) * time.Hour,
		CompactionInterval:  time.Hour,
	}, st, coord, log)

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	authHandler := auth.New(cfg.Auth.Enabled, cfg.Auth.JWTSecret, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", authHandler.Middleware(mgr.ServeWS))
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/instances", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mgr.HostedInstanceKeys())
	})
	if coord != nil {
		mux.HandleFunc("/api/cluster/stats", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(coord.Stats())
		})
	}

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("collab server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Infow("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	// Per spec.md §5: stop accepting, force-flush every instance, release
	// ownership, mark registry offline, close cluster sockets — in that
	// order.
	cancel()
	mgr.Stop(shutdownCtx)
	if coord != nil {
		coord.Stop(shutdownCtx)
	}

	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

