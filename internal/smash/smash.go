// Package smash implements the platform-fighter simulation (spec
// §4.5.1): stock-based knockout on percent-scaled knockback across a
// fixed stage of platforms. Movement/gravity integration follows the
// same Euler-step shape as the teacher's Physics.UpdatePlayer; the
// stocks/respawn/kill-plane state machine has no teacher analogue and
// is grounded on the general Player.Respawn/ShouldRespawn lifecycle
// from server/internal/game/player.go, generalized from "explosion
// respawn" to "stock loss respawn".
package smash

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

// platform is a fixed, one-sided stage surface: a fighter standing
// above it with downward velocity lands on it.
type platform struct {
	X1, X2, Y float64
}

// stage is the single built-in layout: one large main platform plus
// two smaller side platforms, wide enough for up to four fighters.
var stage = []platform{
	{X1: -400, X2: 400, Y: 0},
	{X1: -600, X2: -420, Y: -180},
	{X1: 420, X2: 600, Y: -180},
}

const (
	moveAccel    = 1400.0
	airControl   = 700.0
	maxGroundSpd = 360.0
	friction     = 2200.0
	attackDamage = 8.0
	baseKnockback = 260.0
	knockbackPerPercent = 5.5
)

type fighterState string

const (
	stateIdle      fighterState = "idle"
	stateAttacking fighterState = "attacking"
	stateHitstun   fighterState = "hitstun"
	stateRespawning fighterState = "respawning"
	stateOut       fighterState = "out"
)

type fighter struct {
	id     uuid.UUID
	name   string
	number int

	x, y   float64
	vx, vy float64
	facing float64 // +1 or -1

	onGround bool
	jumpHeld bool

	percent float64
	stocks  int

	state         fighterState
	hitstunFrames int
	attackFrame   int
	hasHit        bool
	respawnTimer  float64
	blocking      bool

	in sim.Input
}

// Simulation implements sim.Simulation for the "smash" mode.
type Simulation struct {
	fighters map[uuid.UUID]*fighter
	order    []uuid.UUID
	events   []sim.Event
}

// New constructs a fresh Smash simulation with every participant at
// config.SmashStartStocks stocks, spawning them evenly along the main
// platform (spec §4.5.1 "Round start").
func New(mode string, participants []sim.Participant) (sim.Simulation, error) {
	s := &Simulation{fighters: make(map[uuid.UUID]*fighter)}
	n := len(participants)
	for i, p := range participants {
		spacing := 600.0 / float64(n+1)
		x := -300 + spacing*float64(i+1)
		f := &fighter{
			id: p.ID, name: p.Name, number: p.Number,
			x: x, y: -40, facing: 1,
			stocks: config.SmashStartStocks,
			state:  stateIdle,
		}
		s.fighters[p.ID] = f
		s.order = append(s.order, p.ID)
	}
	return s, nil
}

func (s *Simulation) Mode() string { return "smash" }

func (s *Simulation) ApplyInput(participantID uuid.UUID, in sim.Input) {
	if f, ok := s.fighters[participantID]; ok && f.state != stateOut {
		f.in = in
	}
}

func (s *Simulation) QueueAction(participantID uuid.UUID, kind string, payload json.RawMessage) {
	f, ok := s.fighters[participantID]
	if !ok {
		return
	}
	switch kind {
	case "player-attack", "attack":
		if f.state != stateIdle {
			return
		}
		f.state = stateAttacking
		f.attackFrame = 0
		f.hasHit = false
		s.emit("attack-started", map[string]any{"participantId": f.id.String()})
	case "player-block":
		var blocking bool
		_ = json.Unmarshal(payload, &blocking)
		f.blocking = blocking
	case "player-taunt":
		if f.state == stateIdle {
			s.emit("player-taunt", map[string]any{"participantId": f.id.String()})
		}
	}
}

func (s *Simulation) RemoveParticipant(participantID uuid.UUID) {
	if f, ok := s.fighters[participantID]; ok {
		f.state = stateOut
		f.stocks = 0
	}
}

func (s *Simulation) emit(name string, payload any) {
	s.events = append(s.events, sim.Event{Name: name, Payload: payload})
}

func (s *Simulation) Tick(dt float64) sim.Outcome {
	// s.events already holds what QueueAction emitted since the previous
	// tick (attack-started, player-taunt); it goes out with this tick's
	// outcome.
	defer func() { s.events = nil }()

	for _, id := range s.order {
		f := s.fighters[id]
		if f.state == stateOut {
			continue
		}
		s.step(f, dt)
	}
	s.checkKillPlanes()

	if remaining := s.remainingFighters(); len(remaining) == 1 && len(s.order) > 1 {
		w := s.fighters[remaining[0]]
		s.emit("game-over", map[string]any{"winner": w.id.String()})
		outcome := sim.Outcome{Events: s.events, RoundOver: true, WinnerID: &w.id, WinnerName: w.name}
		return outcome
	}
	return sim.Outcome{Events: s.events}
}

func (s *Simulation) remainingFighters() []uuid.UUID {
	var out []uuid.UUID
	for _, id := range s.order {
		if s.fighters[id].stocks > 0 && s.fighters[id].state != stateOut {
			out = append(out, id)
		}
	}
	return out
}

func (s *Simulation) step(f *fighter, dt float64) {
	switch f.state {
	case stateRespawning:
		f.respawnTimer -= dt
		if f.respawnTimer <= 0 {
			s.respawn(f)
		}
		return
	case stateAttacking:
		s.advanceAttack(f, dt)
		return
	case stateHitstun:
		f.hitstunFrames--
		if f.hitstunFrames <= 0 {
			f.state = stateIdle
		}
	}

	// Horizontal movement.
	accel := moveAccel
	if !f.onGround {
		accel = airControl
	}
	if f.in.Left {
		f.vx -= accel * dt
		f.facing = -1
	}
	if f.in.Right {
		f.vx += accel * dt
		f.facing = 1
	}
	if !f.in.Left && !f.in.Right && f.onGround {
		if f.vx > 0 {
			f.vx = math.Max(0, f.vx-friction*dt)
		} else {
			f.vx = math.Min(0, f.vx+friction*dt)
		}
	}
	if f.vx > maxGroundSpd {
		f.vx = maxGroundSpd
	}
	if f.vx < -maxGroundSpd {
		f.vx = -maxGroundSpd
	}

	// Jump is edge-triggered off the held input flag so a continuous
	// Jump=true input produces exactly one launch per ground contact.
	if f.in.Jump && !f.jumpHeld && f.onGround {
		f.vy = -config.SmashJumpVelocity
		f.onGround = false
	}
	f.jumpHeld = f.in.Jump

	f.vy += config.SmashGravity * dt
	prevY := f.y
	f.x += f.vx * dt
	f.y += f.vy * dt

	s.resolvePlatforms(f, prevY)
}

// resolvePlatforms lands a falling fighter the instant their feet
// reach a platform they're horizontally over, i.e. when this step
// carried them from at-or-above its surface (prevY) to at-or-below it.
// Platforms are one-sided: a fighter already moving upward (vy < 0,
// e.g. mid-jump) passes through without landing.
func (s *Simulation) resolvePlatforms(f *fighter, prevY float64) {
	f.onGround = false
	if f.vy < 0 {
		return
	}
	for _, p := range stage {
		if f.x < p.X1 || f.x > p.X2 {
			continue
		}
		if prevY <= p.Y && f.y >= p.Y {
			f.y = p.Y
			f.vy = 0
			f.onGround = true
			return
		}
	}
}

func (s *Simulation) advanceAttack(f *fighter, dt float64) {
	f.attackFrame += int(math.Round(dt * 60))
	const windup, active, recovery = 5, 4, 10
	if f.attackFrame >= windup && f.attackFrame < windup+active && !f.hasHit {
		s.checkStrike(f)
	}
	if f.attackFrame >= windup+active+recovery {
		f.state = stateIdle
		f.attackFrame = 0
	}
}

func (s *Simulation) checkStrike(f *fighter) {
	const reach = 90.0
	for _, id := range s.order {
		target := s.fighters[id]
		if target == nil || target.id == f.id || target.state == stateOut || target.stocks == 0 {
			continue
		}
		dx := target.x - f.x
		if math.Abs(dx) > reach || math.Abs(target.y-f.y) > 60 {
			continue
		}
		if (dx > 0) != (f.facing > 0) {
			continue
		}
		f.hasHit = true
		s.launch(f, target)
		return
	}
}

func (s *Simulation) launch(attacker, target *fighter) {
	damage := attackDamage
	knockbackScale := 1.0
	facingAttacker := (attacker.x > target.x) == (target.facing > 0)
	if target.blocking && facingAttacker {
		// Facing the attacker while blocking softens the hit, mirroring
		// Arena's block-factor mechanic (spec §4.4.3) for this mode.
		damage *= config.SmashBlockFactor
		knockbackScale = config.SmashBlockFactor
	}
	target.percent += damage
	mag := (baseKnockback + target.percent*knockbackPerPercent) * knockbackScale
	dir := 1.0
	if target.x < attacker.x {
		dir = -1.0
	}
	target.vx = dir * mag * 0.6
	target.vy = -mag * 0.8
	target.state = stateHitstun
	target.hitstunFrames = int(10 + target.percent*0.3)
	target.onGround = false

	s.emit("attack-hit", map[string]any{
		"attackerId": attacker.id.String(),
		"targetId":   target.id.String(),
		"percent":    round2(target.percent),
	})
}

func (s *Simulation) checkKillPlanes() {
	for _, id := range s.order {
		f := s.fighters[id]
		if f.state == stateOut || f.state == stateRespawning {
			continue
		}
		if f.x < -config.SmashKillPlaneX || f.x > config.SmashKillPlaneX ||
			f.y > config.SmashKillPlaneYTop || f.y < config.SmashKillPlaneYBot {
			s.loseStock(f)
		}
	}
}

func (s *Simulation) loseStock(f *fighter) {
	f.stocks--
	s.emit("player-ko", map[string]any{
		"participantId":   f.id.String(),
		"stocksRemaining": f.stocks,
		"eliminated":      f.stocks <= 0,
	})
	if f.stocks <= 0 {
		f.state = stateOut
		return
	}
	f.state = stateRespawning
	f.respawnTimer = config.SmashRespawnDelay.Seconds()
}

func (s *Simulation) respawn(f *fighter) {
	f.x, f.y = 0, -400
	f.vx, f.vy = 0, 0
	f.percent = 0
	f.state = stateIdle
	s.emit("smash-respawn", map[string]any{"participantId": f.id.String()})
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

type view struct {
	ParticipantID string  `json:"participantId"`
	Number        int     `json:"number"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Facing        float64 `json:"facing"`
	Percent       float64 `json:"percent"`
	Stocks        int     `json:"stocks"`
	State         string  `json:"state"`
}

type snapshot struct {
	Fighters []view `json:"fighters"`
}

func (s *Simulation) Snapshot() any {
	out := snapshot{Fighters: make([]view, 0, len(s.order))}
	for _, id := range s.order {
		f := s.fighters[id]
		out.Fighters = append(out.Fighters, view{
			ParticipantID: f.id.String(), Number: f.number,
			X: round2(f.x), Y: round2(f.y), Facing: f.facing,
			Percent: round2(f.percent), Stocks: f.stocks, State: string(f.state),
		})
	}
	return out
}
