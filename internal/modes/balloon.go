package modes

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

type balloonPlayer struct {
	id        uuid.UUID
	name      string
	number    int
	size      float64
	burstAt   float64
	cooldown  float64
	popped    bool
}

// balloonRoundSeconds bounds a round: spec §4.5.6 "At timeout, the
// non-DQ player with max size wins" in case nobody bursts.
const balloonRoundSeconds = 45.0

// Balloon implements the inflate-without-popping mode (spec §4.5.6).
// Each participant's burst threshold is fixed at round start within
// [BalloonMinBurst, BalloonMaxBurst] from their join order, so outcomes
// are deterministic given a fixed roster rather than drawn from a
// live RNG mid-round — the server has no source of per-tick
// randomness it needs to keep in sync with clients otherwise.
type Balloon struct {
	players map[uuid.UUID]*balloonPlayer
	order   []uuid.UUID
	elapsed float64
	events  []sim.Event
}

func NewBalloon(mode string, participants []sim.Participant) (sim.Simulation, error) {
	b := &Balloon{players: make(map[uuid.UUID]*balloonPlayer)}
	span := config.BalloonMaxBurst - config.BalloonMinBurst
	n := len(participants)
	for i, p := range participants {
		frac := 0.5
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		burst := config.BalloonMinBurst + span*frac
		b.players[p.ID] = &balloonPlayer{id: p.ID, name: p.Name, number: p.Number, burstAt: burst}
		b.order = append(b.order, p.ID)
	}
	return b, nil
}

func (b *Balloon) Mode() string { return "balloon" }

func (b *Balloon) ApplyInput(uuid.UUID, sim.Input) {}

func (b *Balloon) QueueAction(participantID uuid.UUID, kind string, _ json.RawMessage) {
	if kind != "balloon-inflate" {
		return
	}
	p, ok := b.players[participantID]
	if !ok || p.popped || p.cooldown > 0 {
		return
	}
	p.size += config.BalloonInflateAmount
	p.cooldown = config.BalloonInflateCooldown.Seconds()
}

func (b *Balloon) RemoveParticipant(participantID uuid.UUID) {
	if p, ok := b.players[participantID]; ok {
		p.popped = true
	}
}

func (b *Balloon) Tick(dt float64) sim.Outcome {
	b.events = nil
	b.elapsed += dt
	for _, id := range b.order {
		p := b.players[id]
		if p.popped {
			continue
		}
		if p.cooldown > 0 {
			p.cooldown -= dt
		}
		p.size = math.Max(0, p.size-config.BalloonDeflateRate*dt)
		if p.size >= p.burstAt {
			p.popped = true
			b.events = append(b.events, sim.Event{Name: "balloon-popped", Payload: map[string]any{"participantId": p.id.String()}})
		}
	}

	outcome := sim.Outcome{Events: b.events}
	remaining := b.remaining()
	switch {
	case len(remaining) == 1 && len(b.order) > 1:
		outcome.RoundOver = true
		w := b.players[remaining[0]]
		outcome.WinnerID = &w.id
		outcome.WinnerName = w.name
		outcome.Scores = b.scores()
	case b.elapsed >= balloonRoundSeconds && len(b.order) > 0:
		outcome.RoundOver = true
		candidates := remaining
		if len(candidates) == 0 {
			candidates = b.order
		}
		best := candidates[0]
		for _, id := range candidates {
			if b.players[id].size > b.players[best].size {
				best = id
			}
		}
		w := b.players[best]
		outcome.WinnerID = &w.id
		outcome.WinnerName = w.name
		outcome.Scores = b.scores()
	}
	return outcome
}

func (b *Balloon) remaining() []uuid.UUID {
	var out []uuid.UUID
	for _, id := range b.order {
		if !b.players[id].popped {
			out = append(out, id)
		}
	}
	return out
}

func (b *Balloon) scores() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(b.order))
	for _, id := range b.order {
		out[id] = int(b.players[id].size)
	}
	return out
}

func (b *Balloon) Snapshot() any {
	type view struct {
		ParticipantID string  `json:"participantId"`
		Size          float64 `json:"size"`
		Popped        bool    `json:"popped"`
	}
	out := make([]view, 0, len(b.order))
	for _, id := range b.order {
		p := b.players[id]
		out = append(out, view{p.id.String(), round2(p.size), p.popped})
	}
	return struct {
		RemainingSeconds float64 `json:"remainingSeconds"`
		Players          []view  `json:"players"`
	}{round2(math.Max(0, balloonRoundSeconds-b.elapsed)), out}
}
