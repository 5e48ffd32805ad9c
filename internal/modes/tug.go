package modes

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

// tugSide is which end of the rope a participant pulls for. Spec
// §4.5.5 splits the roster into two sides by join order parity.
type tugSide int

const (
	sideA tugSide = iota
	sideB
)

type tugPlayer struct {
	id       uuid.UUID
	name     string
	number   int
	side     tugSide
	stamina  float64
}

// tugRoundSeconds bounds a round: spec §4.5.5 "Victory when rope
// offset crosses a threshold, or best position at timeout."
const tugRoundSeconds = 60.0

// Tug implements the timed-pull rope mode: a pulse fires on a fixed
// interval, and each pull action's distance from the pulse's moment
// determines whether it counts as a Perfect, Good, or Miss (spec
// §4.5.5).
type Tug struct {
	players     map[uuid.UUID]*tugPlayer
	order       []uuid.UUID
	ropePos     float64 // positive favors side A
	pulseTimer  float64
	sincePulse  float64
	elapsed     float64
	events      []sim.Event
}

func NewTug(mode string, participants []sim.Participant) (sim.Simulation, error) {
	t := &Tug{players: make(map[uuid.UUID]*tugPlayer), pulseTimer: config.TugPulseInterval.Seconds()}
	for i, p := range participants {
		side := sideA
		if i%2 == 1 {
			side = sideB
		}
		t.players[p.ID] = &tugPlayer{id: p.ID, name: p.Name, number: p.Number, side: side, stamina: config.MaxStamina}
		t.order = append(t.order, p.ID)
	}
	return t, nil
}

func (t *Tug) Mode() string { return "tug" }

func (t *Tug) ApplyInput(uuid.UUID, sim.Input) {}

func (t *Tug) QueueAction(participantID uuid.UUID, kind string, _ json.RawMessage) {
	if kind != "tug-pull" {
		return
	}
	p, ok := t.players[participantID]
	if !ok || p.stamina <= 0 {
		return
	}
	offset := math.Abs(t.sincePulse)
	var pull float64
	var quality string
	switch {
	case offset <= config.TugPerfectWindow.Seconds():
		pull, quality = config.TugPerfectPull, "perfect"
	case offset <= config.TugGoodWindow.Seconds():
		pull, quality = config.TugGoodPull, "good"
	default:
		p.stamina -= config.TugMissStaminaCost
		quality = "miss"
	}
	if pull > 0 {
		if p.side == sideA {
			t.ropePos += pull
		} else {
			t.ropePos -= pull
		}
	}
	t.events = append(t.events, sim.Event{Name: "tug-pull", Payload: map[string]any{
		"participantId": p.id.String(),
		"quality":       quality,
	}})
}

func (t *Tug) RemoveParticipant(participantID uuid.UUID) {
	delete(t.players, participantID)
	for i, id := range t.order {
		if id == participantID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *Tug) Tick(dt float64) sim.Outcome {
	// t.events already holds the tug-pull events QueueAction recorded
	// since the previous tick; they go out with this tick's outcome.
	defer func() { t.events = nil }()
	t.elapsed += dt
	t.sincePulse += dt

	if t.sincePulse >= config.TugPulseInterval.Seconds() {
		t.sincePulse = 0
		t.events = append(t.events, sim.Event{Name: "tug-pulse", Payload: nil})
	}

	for _, id := range t.order {
		p := t.players[id]
		if p.stamina < config.MaxStamina {
			p.stamina = math.Min(config.MaxStamina, p.stamina+config.TugStaminaRegen*dt)
		}
	}

	outcome := sim.Outcome{Events: t.events}
	switch {
	case math.Abs(t.ropePos) >= config.TugVictoryOffset && len(t.order) > 0:
		outcome.RoundOver = true
		t.setWinnerForSide(&outcome, t.leadingSide())
		outcome.Scores = t.scores()
	case t.elapsed >= tugRoundSeconds && len(t.order) > 0:
		outcome.RoundOver = true
		t.setWinnerForSide(&outcome, t.leadingSide())
		outcome.Scores = t.scores()
	}
	return outcome
}

// leadingSide is whichever side the rope currently favors; ties (rope
// dead-center at timeout) arbitrarily favor side A.
func (t *Tug) leadingSide() tugSide {
	if t.ropePos < 0 {
		return sideB
	}
	return sideA
}

func (t *Tug) setWinnerForSide(outcome *sim.Outcome, side tugSide) {
	for _, id := range t.order {
		if t.players[id].side == side {
			w := id
			outcome.WinnerID = &w
			outcome.WinnerName = t.players[id].name
			return
		}
	}
}

func (t *Tug) scores() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(t.order))
	for _, id := range t.order {
		out[id] = int(t.ropePos)
	}
	return out
}

func (t *Tug) Snapshot() any {
	type view struct {
		ParticipantID string  `json:"participantId"`
		Stamina       float64 `json:"stamina"`
		Side          int     `json:"side"`
	}
	out := make([]view, 0, len(t.order))
	for _, id := range t.order {
		p := t.players[id]
		out = append(out, view{p.id.String(), round2(p.stamina), int(p.side)})
	}
	return struct {
		RopePosition     float64 `json:"ropePosition"`
		RemainingSeconds float64 `json:"remainingSeconds"`
		Players          []view  `json:"players"`
	}{round2(t.ropePos), round2(math.Max(0, tugRoundSeconds-t.elapsed)), out}
}
