package modes

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

type painter struct {
	id     uuid.UUID
	name   string
	number int
	x, y   float64
	owner  int8 // == number, the grid's per-cell owner id (spec §3: -1 unowned, else participant number)
	in     sim.Input
}

// Paint implements the territory-claiming mode (spec §4.5.7): players
// move freely over a fixed grid, painting every cell they walk across
// in their color. The 60x60 ownership grid is broadcast as a raw
// binary frame (one byte per cell) rather than JSON — at 3600 cells a
// JSON array (two to three bytes per cell) would be several times
// heavier on the wire for
// no semantic benefit, mirroring why the teacher never JSON-encodes
// its own per-tick state either.
type Paint struct {
	players map[uuid.UUID]*painter
	order   []uuid.UUID
	grid    []int8
	elapsed float64
	events  []sim.Event
}

const paintRoundSeconds = 90.0

func NewPaint(mode string, participants []sim.Participant) (sim.Simulation, error) {
	p := &Paint{players: make(map[uuid.UUID]*painter)}
	p.grid = make([]int8, config.PaintGridSize*config.PaintGridSize)
	for i := range p.grid {
		p.grid[i] = config.PaintUnowned
	}
	n := len(participants)
	for i, part := range participants {
		angle := 2 * math.Pi * float64(i) / float64(max(n, 1))
		radius := float64(config.PaintGridSize) * 0.3
		p.players[part.ID] = &painter{
			id: part.ID, name: part.Name, number: part.Number,
			x: float64(config.PaintGridSize)/2 + radius*math.Cos(angle),
			y: float64(config.PaintGridSize)/2 + radius*math.Sin(angle),
			owner: int8(part.Number),
		}
		p.order = append(p.order, part.ID)
	}
	return p, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (p *Paint) Mode() string { return "paint" }

func (p *Paint) ApplyInput(participantID uuid.UUID, in sim.Input) {
	if pl, ok := p.players[participantID]; ok {
		pl.in = in
	}
}

func (p *Paint) QueueAction(uuid.UUID, string, json.RawMessage) {}

func (p *Paint) RemoveParticipant(participantID uuid.UUID) {
	delete(p.players, participantID)
	for i, id := range p.order {
		if id == participantID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *Paint) cellIndex(x, y float64) (int, bool) {
	gx, gy := int(x), int(y)
	if gx < 0 || gy < 0 || gx >= config.PaintGridSize || gy >= config.PaintGridSize {
		return 0, false
	}
	return gy*config.PaintGridSize + gx, true
}

func (p *Paint) Tick(dt float64) sim.Outcome {
	p.events = nil
	p.elapsed += dt

	for _, id := range p.order {
		pl := p.players[id]
		dx, dy := 0.0, 0.0
		if pl.in.Left {
			dx -= 1
		}
		if pl.in.Right {
			dx += 1
		}
		if pl.in.Up {
			dy -= 1
		}
		if pl.in.Down {
			dy += 1
		}
		if dx != 0 || dy != 0 {
			l := math.Hypot(dx, dy)
			pl.x = clampf(pl.x+(dx/l)*config.PaintMoveSpeed*dt/10, 0, config.PaintGridSize-1)
			pl.y = clampf(pl.y+(dy/l)*config.PaintMoveSpeed*dt/10, 0, config.PaintGridSize-1)
		}
		if idx, ok := p.cellIndex(pl.x, pl.y); ok {
			p.grid[idx] = pl.owner
		}
	}

	p.events = append(p.events, sim.Event{Name: "paint-grid", Payload: append([]byte(nil), byteGrid(p.grid)...)})

	outcome := sim.Outcome{Events: p.events}
	if p.elapsed >= paintRoundSeconds && len(p.order) > 0 {
		outcome.RoundOver = true
		scores := p.scores()
		outcome.Scores = scores
		best := p.order[0]
		for _, id := range p.order {
			if scores[id] > scores[best] {
				best = id
			}
		}
		outcome.WinnerID = &best
		outcome.WinnerName = p.players[best].name
	}
	return outcome
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func byteGrid(grid []int8) []byte {
	out := make([]byte, len(grid))
	for i, v := range grid {
		out[i] = byte(v)
	}
	return out
}

func (p *Paint) scores() map[uuid.UUID]int {
	counts := make(map[int8]int)
	for _, v := range p.grid {
		if v != config.PaintUnowned {
			counts[v]++
		}
	}
	out := make(map[uuid.UUID]int, len(p.order))
	for _, id := range p.order {
		out[id] = counts[p.players[id].owner]
	}
	return out
}

func (p *Paint) Snapshot() any {
	type view struct {
		ParticipantID string  `json:"participantId"`
		X             float64 `json:"x"`
		Y             float64 `json:"y"`
		Score         int     `json:"score"`
	}
	scores := p.scores()
	out := make([]view, 0, len(p.order))
	for _, id := range p.order {
		pl := p.players[id]
		out = append(out, view{pl.id.String(), round2(pl.x), round2(pl.y), scores[id]})
	}
	return struct {
		RemainingSeconds float64 `json:"remainingSeconds"`
		Players          []view  `json:"players"`
	}{round2(math.Max(0, paintRoundSeconds-p.elapsed)), out}
}
