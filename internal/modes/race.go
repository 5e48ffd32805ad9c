// Package modes implements the six lighter party-game simulations
// (spec §4.5.2-§4.5.7), each a small sim.Simulation built the same way
// the teacher builds its one mode: an authoritative per-tick integrate
// step plus a thin public Snapshot view. None of these carry a direct
// teacher analogue beyond that shape, since the teacher only ever ran
// one game mode; each is grounded on the same Physics.UpdatePlayer
// Euler-integration pattern and on the teacher's tick-local event
// buffer (Room.broadcast after each updatePhysics pass).
package modes

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

type racer struct {
	id       uuid.UUID
	name     string
	number   int
	distance float64
	speed    float64
	lastSide string
	finished bool
}

// Race implements the tap-alternating-sides runner (spec §4.5.2,
// documented as an Open Question resolution in config.go's Race
// tunables).
type Race struct {
	racers       map[uuid.UUID]*racer
	order        []uuid.UUID
	elapsed      float64
	countdown    float64
	lastCount    int
	started      bool
	finishOrder  []uuid.UUID
	events       []sim.Event
}

func NewRace(mode string, participants []sim.Participant) (sim.Simulation, error) {
	r := &Race{racers: make(map[uuid.UUID]*racer), countdown: float64(config.RaceCountdownSeconds)}
	r.lastCount = config.RaceCountdownSeconds + 1
	for _, p := range participants {
		r.racers[p.ID] = &racer{id: p.ID, name: p.Name, number: p.Number}
		r.order = append(r.order, p.ID)
	}
	return r, nil
}

func (r *Race) Mode() string { return "race" }

func (r *Race) ApplyInput(uuid.UUID, sim.Input) {}

type raceTapPayload struct {
	Side string `json:"side"`
}

func (r *Race) QueueAction(participantID uuid.UUID, kind string, payload json.RawMessage) {
	if kind != "race-tap" || !r.started {
		return
	}
	racer, ok := r.racers[participantID]
	if !ok || racer.finished {
		return
	}
	var req raceTapPayload
	_ = json.Unmarshal(payload, &req)
	side := req.Side
	if side != "left" && side != "right" {
		return
	}
	accel := config.RaceTapAccel
	if side == racer.lastSide {
		accel *= config.RaceSameSidePenalty
	}
	racer.lastSide = side
	racer.speed += accel
}

func (r *Race) RemoveParticipant(participantID uuid.UUID) {
	if racer, ok := r.racers[participantID]; ok {
		racer.finished = true
	}
}

func (r *Race) Tick(dt float64) sim.Outcome {
	r.events = nil

	if !r.started {
		r.countdown -= dt
		count := int(math.Ceil(r.countdown))
		if count < r.lastCount && count >= 0 {
			r.lastCount = count
			r.events = append(r.events, sim.Event{Name: "race-countdown", Payload: map[string]any{"count": count}})
		}
		if r.countdown <= 0 {
			r.started = true
			r.events = append(r.events, sim.Event{Name: "race-start", Payload: nil})
		}
		return sim.Outcome{Events: r.events}
	}

	r.elapsed += dt
	for _, id := range r.order {
		racer := r.racers[id]
		if racer.finished {
			continue
		}
		racer.speed = math.Max(0, racer.speed-config.RaceDecayPerSecond*dt)
		racer.distance += racer.speed * dt
		if racer.distance >= config.RaceFinishDistance {
			racer.distance = config.RaceFinishDistance
			racer.finished = true
			r.finishOrder = append(r.finishOrder, racer.id)
			r.events = append(r.events, sim.Event{Name: "race-finish", Payload: map[string]any{
				"participantId": racer.id.String(),
				"place":         len(r.finishOrder),
			}})
		}
	}

	outcome := sim.Outcome{Events: r.events}
	if len(r.finishOrder) == len(r.order) && len(r.order) > 0 {
		ranking := make([]map[string]any, 0, len(r.finishOrder))
		for i, id := range r.finishOrder {
			ranking = append(ranking, map[string]any{"participantId": id.String(), "place": i + 1})
		}
		winner := r.racers[r.finishOrder[0]]
		outcome.RoundOver = true
		outcome.WinnerID = &winner.id
		outcome.WinnerName = winner.name
		outcome.Scores = r.scores()
		outcome.Events = append(outcome.Events, sim.Event{Name: "race-winner", Payload: map[string]any{
			"winnerId": winner.id.String(),
			"ranking":  ranking,
		}})
	}
	return outcome
}

func (r *Race) scores() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(r.order))
	for _, id := range r.order {
		out[id] = int(r.racers[id].distance)
	}
	return out
}

type raceView struct {
	ParticipantID string  `json:"participantId"`
	Number        int     `json:"number"`
	Distance      float64 `json:"distance"`
	Speed         float64 `json:"speed"`
	Finished      bool    `json:"finished"`
}

func (r *Race) Snapshot() any {
	out := make([]raceView, 0, len(r.order))
	for _, id := range r.order {
		racer := r.racers[id]
		out = append(out, raceView{racer.id.String(), racer.number, round2(racer.distance), round2(racer.speed), racer.finished})
	}
	return struct {
		Countdown float64    `json:"countdown"`
		Racers    []raceView `json:"racers"`
	}{round2(math.Max(0, r.countdown)), out}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
