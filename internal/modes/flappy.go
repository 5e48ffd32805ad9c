package modes

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

type bird struct {
	id     uuid.UUID
	name   string
	number int
	y      float64
	vy     float64
	alive  bool
	score  int
}

type obstacle struct {
	x      float64
	gapY   float64
	passed map[uuid.UUID]bool
}

// Flappy implements the side-scrolling obstacle dodge (spec §4.5.3).
// Every bird shares the same obstacle column; a bird is eliminated the
// instant it leaves the gap window as the obstacle crosses it.
type Flappy struct {
	birds     map[uuid.UUID]*bird
	order     []uuid.UUID
	obstacles []*obstacle
	spawnTimer float64
	events    []sim.Event
}

func NewFlappy(mode string, participants []sim.Participant) (sim.Simulation, error) {
	f := &Flappy{birds: make(map[uuid.UUID]*bird)}
	for _, p := range participants {
		f.birds[p.ID] = &bird{id: p.ID, name: p.Name, number: p.Number, alive: true}
		f.order = append(f.order, p.ID)
	}
	f.obstacles = append(f.obstacles, f.newObstacle(600))
	return f, nil
}

func (f *Flappy) newObstacle(x float64) *obstacle {
	return &obstacle{x: x, gapY: 0, passed: make(map[uuid.UUID]bool)}
}

func (f *Flappy) Mode() string { return "flappy" }

func (f *Flappy) ApplyInput(uuid.UUID, sim.Input) {}

func (f *Flappy) QueueAction(participantID uuid.UUID, kind string, _ json.RawMessage) {
	if kind != "flappy-tap" {
		return
	}
	if b, ok := f.birds[participantID]; ok && b.alive {
		b.vy = config.FlappyTapImpulse
	}
}

func (f *Flappy) RemoveParticipant(participantID uuid.UUID) {
	if b, ok := f.birds[participantID]; ok {
		b.alive = false
	}
}

func (f *Flappy) Tick(dt float64) sim.Outcome {
	f.events = nil

	for _, id := range f.order {
		b := f.birds[id]
		if !b.alive {
			continue
		}
		b.vy += config.FlappyGravity * dt
		b.y += b.vy * dt
		if b.y < -400 || b.y > 400 {
			f.eliminate(b)
		}
	}

	f.spawnTimer -= dt
	if f.spawnTimer <= 0 {
		f.spawnTimer = config.FlappyObstacleSpanX / config.FlappyScrollSpeed
		f.obstacles = append(f.obstacles, f.newObstacle(700))
	}

	var live []*obstacle
	for _, o := range f.obstacles {
		o.x -= config.FlappyScrollSpeed * dt
		if o.x < -700 {
			continue
		}
		live = append(live, o)
		if o.x < 0 && o.x > -20 {
			for _, id := range f.order {
				b := f.birds[id]
				if b.alive && !o.passed[id] {
					o.passed[id] = true
					b.score++
				}
			}
		}
		if o.x > -30 && o.x < 30 {
			for _, id := range f.order {
				b := f.birds[id]
				if b.alive && math.Abs(b.y-o.gapY) > config.FlappyObstacleGapY/2 {
					f.eliminate(b)
				}
			}
		}
	}
	f.obstacles = live

	outcome := sim.Outcome{Events: f.events}
	if alive := f.aliveCount(); alive <= 1 && len(f.order) > 1 {
		outcome.RoundOver = true
		if w := f.soleSurvivor(); w != nil {
			outcome.WinnerID = &w.id
			outcome.WinnerName = w.name
		}
		outcome.Scores = f.scores()
	}
	return outcome
}

func (f *Flappy) eliminate(b *bird) {
	if !b.alive {
		return
	}
	b.alive = false
	f.events = append(f.events, sim.Event{Name: "flappy-elimination", Payload: map[string]any{"participantId": b.id.String()}})
}

func (f *Flappy) aliveCount() int {
	n := 0
	for _, b := range f.birds {
		if b.alive {
			n++
		}
	}
	return n
}

func (f *Flappy) soleSurvivor() *bird {
	for _, b := range f.birds {
		if b.alive {
			return b
		}
	}
	return nil
}

func (f *Flappy) scores() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(f.order))
	for _, id := range f.order {
		out[id] = f.birds[id].score
	}
	return out
}

type flappyBirdView struct {
	ParticipantID string  `json:"participantId"`
	Number        int     `json:"number"`
	Y             float64 `json:"y"`
	Alive         bool    `json:"alive"`
	Score         int     `json:"score"`
}

type flappyObstacleView struct {
	X    float64 `json:"x"`
	GapY float64 `json:"gapY"`
}

func (f *Flappy) Snapshot() any {
	birds := make([]flappyBirdView, 0, len(f.order))
	for _, id := range f.order {
		b := f.birds[id]
		birds = append(birds, flappyBirdView{b.id.String(), b.number, round2(b.y), b.alive, b.score})
	}
	obstacles := make([]flappyObstacleView, 0, len(f.obstacles))
	for _, o := range f.obstacles {
		obstacles = append(obstacles, flappyObstacleView{round2(o.x), round2(o.gapY)})
	}
	return struct {
		Birds     []flappyBirdView     `json:"birds"`
		Obstacles []flappyObstacleView `json:"obstacles"`
	}{birds, obstacles}
}
