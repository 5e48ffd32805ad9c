// Command arenaserver runs the authoritative party-game server: one
// process hosting every live room's lobby, tick loop, and active mode
// simulation over WebSocket (spec §1-§2). Wiring here mirrors the
// teacher's cmd/gameserver/main.go — a GameServer struct assembling
// Matchmaker+Protocol+HTTP mux at startup, with /health and /stats
// endpoints and background cleanup — generalized to the lobby/loop
// split this server's broader mode roster requires.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/lobby"
	"github.com/partyarena/arenaserver/internal/loop"
	"github.com/partyarena/arenaserver/internal/modes"
	"github.com/partyarena/arenaserver/internal/transport"
)

// dispatcherSlot lets the Hub and the Manager be constructed in either
// order: the Hub needs a Dispatcher at construction time, but the
// Manager needs a finished Hub to broadcast through, so this indirects
// the Hub's calls to whichever Dispatcher is installed after both
// exist.
type dispatcherSlot struct {
	target transport.Dispatcher
}

func (d *dispatcherSlot) Dispatch(participantID uuid.UUID, event string, payload json.RawMessage, reply func(bool, any)) {
	d.target.Dispatch(participantID, event, payload, reply)
}

func (d *dispatcherSlot) Disconnected(participantID uuid.UUID) {
	d.target.Disconnected(participantID)
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.FromEnv()

	slot := &dispatcherSlot{}
	hub := transport.NewHub(log, slot)
	runtime := loop.New(log, hub, cfg.TickHz, cfg.SnapshotEveryNTicks)
	manager := lobby.New(log, hub, runtime, modes.Factory, cfg)
	slot.target = manager

	manager.StartCleanup(30 * time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeHTTP)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(hub, manager))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info("arena server listening",
			zap.String("addr", addr),
			zap.Int("tickHz", cfg.TickHz),
			zap.Int("snapshotEveryNTicks", cfg.SnapshotEveryNTicks),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	logStatsPeriodically(log, hub, manager)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
		os.Exit(1)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(hub *transport.Hub, manager *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"connectedClients": hub.Stats(),
			"activeRooms":      manager.Stats(),
		})
	}
}

func logStatsPeriodically(log *zap.Logger, hub *transport.Hub, manager *lobby.Manager) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			log.Info("stats", zap.Int("connectedClients", hub.Stats()), zap.Int("activeRooms", manager.Stats()))
		}
	}()
}
