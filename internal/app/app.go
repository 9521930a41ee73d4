// Package app wires the process: configuration, the logging router and its
// sinks, the transport binding, the hub, and the diagnostics HTTP surface.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"emberfall/server/internal/proto"
	"emberfall/server/internal/server"
	"emberfall/server/internal/telemetry"
	"emberfall/server/internal/transport"
	"emberfall/server/internal/world"
	"emberfall/server/logging"
	loggingSinks "emberfall/server/logging/sinks"
)

// Run starts the server and blocks until ctx is done or the listener fails.
func Run(ctx context.Context, cfg Config, logger telemetry.Logger) error {
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	router, err := buildRouter(cfg)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("close logging router: %v", cerr)
		}
	}()

	binding, err := bind(cfg, logger)
	if err != nil {
		return fmt.Errorf("bind transport: %w", err)
	}
	defer binding.Close()

	hubCfg := server.DefaultConfig()
	hubCfg.World = world.Config{
		MaxPlayers:     cfg.MaxPlayers,
		MaxEntities:    cfg.MaxEntities,
		MaxProjectiles: cfg.MaxProjectiles,
		Dedicated:      cfg.Dedicated,
	}
	hubCfg.BroadcastInterval = cfg.BroadcastInterval
	hubCfg.EvictAfter = cfg.EvictAfter
	hubCfg.ProjectileLifetime = cfg.ProjectileLifetime
	hubCfg.Publisher = router
	if cfg.MirrorSocket != "" {
		loopBinding, err := transport.ListenLoopback(cfg.MirrorSocket, logger)
		if err != nil {
			return fmt.Errorf("bind mirror socket: %w", err)
		}
		defer loopBinding.Close()
		hubCfg.LoopBinding = loopBinding
	}
	hub := server.NewHub(binding, hubCfg)

	go hub.Run(ctx)
	logger.Printf("listening on %s", binding.LocalAddr())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: diagnosticsHandler(hub, router)}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		hub.Feed().Close()
		return nil
	case err := <-errCh:
		return fmt.Errorf("diagnostics server: %w", err)
	}
}

func buildRouter(cfg Config) (*logging.Router, error) {
	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = cfg.LogSinks
	logCfg.MinimumSeverity = cfg.severity()
	logCfg.JSON.FilePath = cfg.LogFile
	logCfg.Fields = map[string]any{
		"session": uuid.NewString(),
	}

	sinks := map[string]logging.Sink{
		"console": loggingSinks.NewConsoleSink(os.Stdout),
	}
	if logCfg.HasSink("json") {
		jsonSink, err := loggingSinks.NewJSONSink(logCfg.JSON)
		if err != nil {
			return nil, err
		}
		sinks["json"] = jsonSink
	}
	return logging.NewRouter(logging.SystemClock{}, logCfg, sinks), nil
}

func bind(cfg Config, logger telemetry.Logger) (transport.Binding, error) {
	if cfg.LoopbackSocket != "" {
		return transport.ListenLoopback(cfg.LoopbackSocket, logger)
	}
	return transport.ListenUDP(cfg.ListenAddr, logger)
}

// diagnosticsHandler serves the counters snapshot, the logging router stats,
// and the websocket spectator feed.
func diagnosticsHandler(hub *server.Hub, router *logging.Router) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		payload := struct {
			Counters   server.CountersSnapshot `json:"counters"`
			Logging    logging.RouterStats     `json:"logging"`
			Spectators int                     `json:"spectators"`
		}{
			Counters:   hub.Counters().Snapshot(),
			Logging:    router.Stats(),
			Spectators: hub.Feed().Len(),
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/restart", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		hub.RequestRestart(restartReason(r.URL.Query().Get("reason")))
		w.WriteHeader(http.StatusAccepted)
	})
	mux.Handle("/watch", hub.Feed())
	return mux
}

func restartReason(s string) proto.RestartReason {
	switch s {
	case "match-end":
		return proto.RestartReasonMatchEnd
	default:
		return proto.RestartReasonOperator
	}
}
