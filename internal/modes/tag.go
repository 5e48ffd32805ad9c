package modes

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

// tagRoundSeconds bounds a round: whoever has spent the least total
// time "it" when the clock runs out wins (spec §4.5.4).
const tagRoundSeconds = 60.0

type tagPlayer struct {
	id        uuid.UUID
	name      string
	number    int
	x, y      float64
	itSeconds float64
	immunity  float64
	in        sim.Input
}

// Tag implements the chase mode. Exactly one player is "it" at a
// time; tagging a new player hands off the role and grants the
// freshly-tagged player a brief immunity window, during which it can
// neither tag nor be tagged, so the handoff can't bounce back
// immediately.
type Tag struct {
	players map[uuid.UUID]*tagPlayer
	order   []uuid.UUID
	itID    uuid.UUID
	elapsed float64
	events  []sim.Event
}

func NewTag(mode string, participants []sim.Participant) (sim.Simulation, error) {
	t := &Tag{players: make(map[uuid.UUID]*tagPlayer)}
	for i, p := range participants {
		angle := 2 * math.Pi * float64(i) / float64(len(participants))
		t.players[p.ID] = &tagPlayer{id: p.ID, name: p.Name, number: p.Number, x: 200 * math.Cos(angle), y: 200 * math.Sin(angle)}
		t.order = append(t.order, p.ID)
	}
	if len(t.order) > 0 {
		t.itID = t.order[0]
	}
	return t, nil
}

func (t *Tag) Mode() string { return "tag" }

func (t *Tag) ApplyInput(participantID uuid.UUID, in sim.Input) {
	if p, ok := t.players[participantID]; ok {
		p.in = in
	}
}

func (t *Tag) QueueAction(uuid.UUID, string, json.RawMessage) {}

func (t *Tag) RemoveParticipant(participantID uuid.UUID) {
	delete(t.players, participantID)
	for i, id := range t.order {
		if id == participantID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	if t.itID == participantID && len(t.order) > 0 {
		t.itID = t.order[0]
	}
}

func (t *Tag) Tick(dt float64) sim.Outcome {
	t.events = nil
	t.elapsed += dt

	for _, id := range t.order {
		p := t.players[id]
		dx, dy := 0.0, 0.0
		if p.in.Left {
			dx -= 1
		}
		if p.in.Right {
			dx += 1
		}
		if p.in.Up {
			dy -= 1
		}
		if p.in.Down {
			dy += 1
		}
		if dx != 0 || dy != 0 {
			l := math.Hypot(dx, dy)
			p.x += (dx / l) * config.TagMoveSpeed * dt
			p.y += (dy / l) * config.TagMoveSpeed * dt
		}
		if p.immunity > 0 {
			p.immunity -= dt
		}
		if id == t.itID {
			p.itSeconds += dt
		}
	}

	it, ok := t.players[t.itID]
	if ok && it.immunity <= 0 {
		for _, id := range t.order {
			if id == t.itID {
				continue
			}
			target := t.players[id]
			if target.immunity > 0 {
				continue
			}
			if math.Hypot(target.x-it.x, target.y-it.y) <= config.TagTagRadius {
				t.itID = id
				target.immunity = config.TagImmunityTime.Seconds()
				t.events = append(t.events, sim.Event{Name: "tag-tagged", Payload: map[string]any{
					"newItId": id.String(),
				}})
				break
			}
		}
	}

	outcome := sim.Outcome{Events: t.events}
	if t.elapsed >= tagRoundSeconds && len(t.order) > 0 {
		outcome.RoundOver = true
		winner := t.order[0]
		for _, id := range t.order {
			if t.players[id].itSeconds < t.players[winner].itSeconds {
				winner = id
			}
		}
		outcome.WinnerID = &winner
		outcome.WinnerName = t.players[winner].name
		outcome.Scores = t.scores()
	}
	return outcome
}

func (t *Tag) scores() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(t.order))
	for _, id := range t.order {
		out[id] = int(tagRoundSeconds - t.players[id].itSeconds)
	}
	return out
}

type tagView struct {
	ParticipantID string  `json:"participantId"`
	Number        int     `json:"number"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	It            bool    `json:"it"`
}

func (t *Tag) Snapshot() any {
	out := make([]tagView, 0, len(t.order))
	for _, id := range t.order {
		p := t.players[id]
		out = append(out, tagView{p.id.String(), p.number, round2(p.x), round2(p.y), id == t.itID})
	}
	return struct {
		RemainingSeconds float64   `json:"remainingSeconds"`
		Players          []tagView `json:"players"`
	}{round2(math.Max(0, tagRoundSeconds-t.elapsed)), out}
}
