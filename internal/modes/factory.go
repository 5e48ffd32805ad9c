package modes

import (
	"fmt"

	"github.com/partyarena/arenaserver/internal/arena"
	"github.com/partyarena/arenaserver/internal/sim"
	"github.com/partyarena/arenaserver/internal/smash"
)

// Factory dispatches a mode tag to its sim.Simulation constructor
// (spec §3 "Simulation factory"). It is the single place that knows
// about every mode package, so the lobby and tournament packages stay
// mode-agnostic.
func Factory(mode string, participants []sim.Participant) (sim.Simulation, error) {
	switch mode {
	case "arena":
		return arena.New(mode, participants)
	case "smash":
		return smash.New(mode, participants)
	case "race":
		return NewRace(mode, participants)
	case "flappy":
		return NewFlappy(mode, participants)
	case "tag":
		return NewTag(mode, participants)
	case "tug":
		return NewTug(mode, participants)
	case "balloon":
		return NewBalloon(mode, participants)
	case "paint":
		return NewPaint(mode, participants)
	default:
		return nil, fmt.Errorf("unknown game mode %q", mode)
	}
}
