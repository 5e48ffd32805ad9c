// Package sim defines the shared contract every game mode simulation
// implements. The Loop Runtime (internal/loop) drives any Simulation
// forward one tick at a time without knowing which mode it is; the
// lobby manager (internal/lobby) builds a fresh Simulation for each
// tournament round and aggregates round results, with
// internal/tournament deciding the champion. This mirrors how the teacher's
// Physics/AntiCheat/SpatialGrid are mode-agnostic helpers driven by
// Room.gameLoop — generalized here into an explicit interface because
// this server runs many distinct modes instead of one.
package sim

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Input is the latest authoritative per-tick intent for one
// participant (spec §3 "Input Vector").
type Input struct {
	Left, Right, Up, Down bool
	Run, Jump, Block      bool
}

// Event is a discrete, semantic one-shot signal emitted the instant it
// occurs (spec §3 "One-shot event"), broadcast alongside snapshots.
type Event struct {
	Name    string
	Payload any
}

// Outcome is what a Tick call reports back to the Loop Runtime.
type Outcome struct {
	Events     []Event
	RoundOver  bool
	WinnerID   *uuid.UUID
	WinnerName string
	// Scores is an optional per-participant score map attached to a
	// round-over outcome, for modes without a single elimination
	// winner. The lobby's round-over handler does not read it: its
	// round-ended broadcast carries round-win counts instead.
	Scores map[uuid.UUID]int
}

// Simulation is the contract every game mode implements. A Simulation
// is owned exclusively by one Room for its lifetime; nothing outside
// the Loop Runtime's single worker for that room may call into it
// concurrently (spec §5).
type Simulation interface {
	// Mode returns the mode tag, e.g. "arena", "smash", "race".
	Mode() string

	// ApplyInput sets the authoritative input vector for a participant.
	// Called once per tick by the Loop Runtime after draining the
	// inbound queue (spec §4.3 step 1).
	ApplyInput(participantID uuid.UUID, in Input)

	// QueueAction enqueues a one-shot action (punch, grab, race-tap,
	// ...) to be drained exactly once by the simulation.
	QueueAction(participantID uuid.UUID, kind string, payload json.RawMessage)

	// Tick advances the simulation by dt seconds and returns whatever
	// events/round-outcome occurred during this step.
	Tick(dt float64) Outcome

	// Snapshot returns the mode-specific public per-tick state,
	// ready to be marshaled as the broadcast payload.
	Snapshot() any

	// RemoveParticipant marks a participant gone (disconnect). Modes
	// treat this as spec §4.4.7 describes for Arena: eliminated with
	// no ring-out damage, generalized to every mode's own "drop out"
	// semantics.
	RemoveParticipant(participantID uuid.UUID)
}

// Factory builds a fresh Simulation for a mode tag given the room's
// current participant roster (id -> display name), used both at
// game-start and by the tournament controller when it reinitializes a
// mode for the next round (spec §4.6).
type Factory func(mode string, participants []Participant) (Simulation, error)

// Participant is the minimal view a Simulation needs of a room member
// at construction time. Full Participant bookkeeping (ready flags,
// character selection, host role) stays in the lobby package —
// simulations only ever need identity plus the per-room sequence
// number that assigns stocks/colors/team sides.
type Participant struct {
	ID     uuid.UUID
	Name   string
	Number int
}
