// Package loop implements the fixed-tick scheduler that drives one
// active room's simulation forward and fans its output back out
// through the transport (spec §4.3). Generalizes the teacher's
// Room.gameLoop (one goroutine per room, physics ticker + broadcast
// ticker) to run an arbitrary sim.Simulation instead of a single
// hardcoded racing physics engine.
package loop

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

// Broadcaster is the subset of transport.Hub the runtime needs. Kept
// as an interface so loop can be tested without a real websocket hub.
type Broadcaster interface {
	Broadcast(roomCode, event string, payload any, except *uuid.UUID)
	BroadcastCoalesced(roomCode, event string, payload any, except *uuid.UUID)
	BroadcastBinary(roomCode, event string, data []byte, except *uuid.UUID)
}

// RoundOverFunc is invoked when a tick reports RoundOver. The
// tournament controller registers this to decide whether to advance
// to the next round or end the tournament (spec §4.6).
type RoundOverFunc func(roomCode string, outcome sim.Outcome)

// Runtime owns exactly one worker per active room. Per spec §5, a
// room's tick, event dispatch, and snapshot broadcast happen
// atomically with respect to any other action on that room — here
// that's simply "only the room's own goroutine ever touches its
// Simulation or queues."
type Runtime struct {
	log         *zap.Logger
	broadcaster Broadcaster
	tickHz      int
	snapshotN   int
	onRoundOver RoundOverFunc

	mu      sync.Mutex
	workers map[string]*roomWorker
}

// New creates a Runtime with no round-over callback; the caller wires
// one in later via SetRoundOverFunc (the tournament controller and the
// lobby manager have a circular dependency otherwise).
func New(log *zap.Logger, broadcaster Broadcaster, tickHz, snapshotEveryN int) *Runtime {
	return &Runtime{
		log:         log,
		broadcaster: broadcaster,
		tickHz:      tickHz,
		snapshotN:   snapshotEveryN,
		workers:     make(map[string]*roomWorker),
	}
}

// SetRoundOverFunc installs the callback fired when a tick reports
// RoundOver.
func (r *Runtime) SetRoundOverFunc(fn RoundOverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRoundOver = fn
}

// StartRoom begins ticking roomCode's simulation. Starting an
// already-running room is a no-op (teacher's Room.Start semantics).
func (r *Runtime) StartRoom(roomCode string, simulation sim.Simulation) {
	r.mu.Lock()
	if _, exists := r.workers[roomCode]; exists {
		r.mu.Unlock()
		return
	}
	w := newRoomWorker(roomCode, simulation, r)
	r.workers[roomCode] = w
	r.mu.Unlock()

	go w.run(time.Second / time.Duration(r.tickHz))
	r.log.Info("room loop started", zap.String("room", roomCode), zap.String("mode", simulation.Mode()))
}

// StopRoom cancels roomCode's ticker at the next boundary. Partial
// ticks are never applied (spec §4.3 cancellation contract).
func (r *Runtime) StopRoom(roomCode string) {
	r.mu.Lock()
	w, exists := r.workers[roomCode]
	if exists {
		delete(r.workers, roomCode)
	}
	r.mu.Unlock()

	if exists {
		w.stopOnce.Do(func() { close(w.stop) })
		r.log.Info("room loop stopped", zap.String("room", roomCode))
	}
}

// EnqueueInput records the latest input vector for a participant in
// roomCode. Safe to call from any goroutine; applied on the next tick.
func (r *Runtime) EnqueueInput(roomCode string, participantID uuid.UUID, in sim.Input) {
	r.mu.Lock()
	w := r.workers[roomCode]
	r.mu.Unlock()
	if w != nil {
		w.setInput(participantID, in)
	}
}

// EnqueueAction enqueues a one-shot action for the next tick. Unlike
// EnqueueInput, actions are never coalesced (spec §4.3); like inputs,
// they are dropped once the participant has sent more than
// config.MaxInputsPerTick messages within the current tick.
func (r *Runtime) EnqueueAction(roomCode string, participantID uuid.UUID, kind string, payload json.RawMessage) {
	r.mu.Lock()
	w := r.workers[roomCode]
	r.mu.Unlock()
	if w != nil {
		w.queueAction(participantID, kind, payload)
	}
}

// RemoveParticipant forwards a disconnect/leave into the room's
// simulation via the same single-writer path as every other mutation.
func (r *Runtime) RemoveParticipant(roomCode string, participantID uuid.UUID) {
	r.mu.Lock()
	w := r.workers[roomCode]
	r.mu.Unlock()
	if w != nil {
		w.removeParticipant(participantID)
	}
}

// IsRunning reports whether roomCode currently has an active ticker.
func (r *Runtime) IsRunning(roomCode string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.workers[roomCode]
	return ok
}

type actionMsg struct {
	ParticipantID uuid.UUID
	Kind          string
	Payload       json.RawMessage
}

type removeMsg struct {
	ParticipantID uuid.UUID
}

// roomWorker is the single goroutine permitted to call into one room's
// Simulation. Everything else only ever reaches it through setInput /
// queueAction / removeParticipant, which hand off via a mutex-guarded
// mailbox (inputs, coalesced by nature) or a buffered channel
// (actions and removals, never coalesced).
type roomWorker struct {
	code    string
	sim     sim.Simulation
	runtime *Runtime

	inputMu sync.Mutex
	inputs  map[uuid.UUID]sim.Input
	// inputCounts is the per-tick, per-participant message counter
	// backing the flood guard below (generalized from the teacher's
	// AntiCheat.ValidateInputRate). Reset every tick after draining.
	inputCounts map[uuid.UUID]int

	actions  chan actionMsg
	removals chan removeMsg

	stop     chan struct{}
	stopOnce sync.Once

	tickCount uint64
}

func newRoomWorker(code string, simulation sim.Simulation, runtime *Runtime) *roomWorker {
	return &roomWorker{
		code:        code,
		sim:         simulation,
		runtime:     runtime,
		inputs:      make(map[uuid.UUID]sim.Input),
		inputCounts: make(map[uuid.UUID]int),
		actions:     make(chan actionMsg, 64),
		removals:    make(chan removeMsg, 8),
		stop:        make(chan struct{}),
	}
}

// rateLimited reports whether participantID has already exceeded
// config.MaxInputsPerTick input/action messages for the tick in
// progress, incrementing its counter as a side effect. This is an
// anti-abuse guard against a single flooding connection and is
// independent of the bounded-queue backpressure drop rule (spec §4.3):
// that rule protects a slow consumer's outbound buffer, this one
// protects the simulation step from one participant's inbound flood.
func (w *roomWorker) rateLimited(participantID uuid.UUID) bool {
	w.inputMu.Lock()
	defer w.inputMu.Unlock()
	w.inputCounts[participantID]++
	return w.inputCounts[participantID] > config.MaxInputsPerTick
}

func (w *roomWorker) setInput(participantID uuid.UUID, in sim.Input) {
	if w.rateLimited(participantID) {
		return
	}
	w.inputMu.Lock()
	w.inputs[participantID] = in
	w.inputMu.Unlock()
}

func (w *roomWorker) queueAction(participantID uuid.UUID, kind string, payload json.RawMessage) {
	if w.rateLimited(participantID) {
		return
	}
	select {
	case w.actions <- actionMsg{ParticipantID: participantID, Kind: kind, Payload: payload}:
	case <-w.stop:
	}
}

func (w *roomWorker) removeParticipant(participantID uuid.UUID) {
	select {
	case w.removals <- removeMsg{ParticipantID: participantID}:
	case <-w.stop:
	}
}

func (w *roomWorker) run(tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	dt := tickInterval.Seconds()
	lastTick := time.Now()

	for {
		select {
		case <-w.stop:
			return
		case now := <-ticker.C:
			actualDt := now.Sub(lastTick).Seconds()
			lastTick = now
			if actualDt > dt*4 {
				// Drift compensation: never let a stall explode physics.
				actualDt = dt
			}
			w.tick(actualDt)
		}
	}
}

func (w *roomWorker) tick(dt float64) {
	// 1. inputs
	w.inputMu.Lock()
	for id, in := range w.inputs {
		w.sim.ApplyInput(id, in)
	}
	for id := range w.inputCounts {
		delete(w.inputCounts, id)
	}
	w.inputMu.Unlock()

drainActions:
	for {
		select {
		case a := <-w.actions:
			w.sim.QueueAction(a.ParticipantID, a.Kind, a.Payload)
		default:
			break drainActions
		}
	}

drainRemovals:
	for {
		select {
		case rm := <-w.removals:
			w.sim.RemoveParticipant(rm.ParticipantID)
			w.inputMu.Lock()
			delete(w.inputs, rm.ParticipantID)
			w.inputMu.Unlock()
		default:
			break drainRemovals
		}
	}

	// 2-4: physics/combat/collisions/eliminations, all inside Tick.
	outcome := w.sim.Tick(dt)
	w.tickCount++

	// 4. the snapshot, downsampled per SNAPSHOT_EVERY_N_TICKS, goes out
	// first so recipients never observe a semantic event before the
	// snapshot of the same tick (spec §4.3 step ordering, §5 ordering
	// guarantee).
	if w.runtime.snapshotN <= 1 || w.tickCount%uint64(w.runtime.snapshotN) == 0 {
		w.runtime.broadcaster.BroadcastCoalesced(w.code, snapshotEventFor(w.sim.Mode()), w.sim.Snapshot(), nil)
	}

	// 5. ...then forward semantic events. A []byte payload is a binary
	// frame (the Paint grid, spec §4.1/§9) and bypasses JSON entirely;
	// everything else is a normal envelope.
	for _, ev := range outcome.Events {
		if data, ok := ev.Payload.([]byte); ok {
			w.runtime.broadcaster.BroadcastBinary(w.code, ev.Name, data, nil)
			continue
		}
		w.runtime.broadcaster.Broadcast(w.code, ev.Name, ev.Payload, nil)
	}

	if outcome.RoundOver {
		w.runtime.mu.Lock()
		fn := w.runtime.onRoundOver
		w.runtime.mu.Unlock()
		if fn != nil {
			fn(w.code, outcome)
		}
	}
}

// snapshotEventFor maps a mode tag to its snapshot event name per the
// catalogue in spec §6. Modes without a dedicated snapshot event fall
// back to the general "game-state" fallback.
func snapshotEventFor(mode string) string {
	switch mode {
	case "arena":
		return "arena-state"
	case "paint":
		return "paint-state"
	default:
		return "game-state"
	}
}
