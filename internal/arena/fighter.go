// Package arena implements the wrestling-ring combat simulation (spec
// §4.4), the hardest of the party-game modes. Its movement integration
// and circular-collider push-apart are grounded on the teacher's
// Physics.UpdatePlayer/CheckCollision (server/internal/game/physics.go);
// its per-tick mutation ordering (inputs, then state machine advance,
// then collisions, then eliminations) generalizes Room.updatePhysics.
package arena

import (
	"math"

	"github.com/google/uuid"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

// fighterState is a Fighter's combat state machine position (spec
// §4.4.2). Exactly one of these holds at any instant.
type fighterState string

const (
	stateIdle      fighterState = "idle"
	stateAttacking fighterState = "attacking"
	stateBlocking  fighterState = "blocking"
	stateGrabbing  fighterState = "grabbing"
	stateGrabbed   fighterState = "grabbed"
	stateStunned   fighterState = "stunned"
	stateThrown    fighterState = "thrown"
	stateEliminated fighterState = "eliminated"
)

// attackKind distinguishes the two strikes spec §4.4.3 defines.
type attackKind string

const (
	attackPunch attackKind = "punch"
	attackKick  attackKind = "kick"
)

type attackSpec struct {
	Windup, Active, Recovery int
	Damage                   float64
}

var attackSpecs = map[attackKind]attackSpec{
	attackPunch: {config.PunchWindup, config.PunchActive, config.PunchRecovery, config.PunchDamage},
	attackKick:  {config.KickWindup, config.KickActive, config.KickRecovery, config.KickDamage},
}

// fighter is one participant's authoritative combat state.
type fighter struct {
	id     uuid.UUID
	name   string
	number int

	x, y       float64
	facingX, facingY float64

	// health is cumulative damage absorbed, not remaining hit points
	// (spec §3 "Fighter State"): it only ever grows, and elimination
	// fires once it reaches config.MaxHealth.
	health  float64
	stamina float64

	state fighterState

	// Attack state.
	attack     attackKind
	attackFrame int
	hasHit     bool

	// Grab state.
	grabTarget   uuid.UUID
	grabFrames   int
	escapeTries  int

	// Stun/thrown timers, counted down in ticks' worth of seconds.
	stunRemaining float64
	thrownVX, thrownVY float64

	blocking bool

	in sim.Input
}

func newFighter(p sim.Participant, spawnAngle float64) *fighter {
	radius := config.RingSize * 0.3
	f := &fighter{
		id:     p.ID,
		name:   p.Name,
		number: p.Number,
		x:      radius * math.Cos(spawnAngle),
		y:      radius * math.Sin(spawnAngle),
		health:  0,
		stamina: config.MaxStamina,
		state:   stateIdle,
	}
	// Face the ring center.
	f.facingX, f.facingY = normalize(-f.x, -f.y)
	return f
}

func normalize(x, y float64) (float64, float64) {
	l := math.Hypot(x, y)
	if l < 1e-6 {
		return 1, 0
	}
	return x / l, y / l
}

func (f *fighter) alive() bool {
	return f.state != stateEliminated
}

func (f *fighter) canAct() bool {
	switch f.state {
	case stateIdle, stateBlocking:
		return true
	default:
		return false
	}
}

// position is the {x,y} shape spec §6's "arena-state" nests under the
// `position` field.
type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// view is the JSON-serializable per-fighter snapshot (spec §6
// "arena-state"): id/position/facingAngle/health/stamina/isGrabbing/
// isGrabbed/isEliminated are the required fields; number/state are
// additional optional fields the catalogue's trailing "..." allows.
type view struct {
	ID          string   `json:"id"`
	Position    position `json:"position"`
	FacingAngle float64  `json:"facingAngle"`
	Health      float64  `json:"health"`
	Stamina     float64  `json:"stamina"`
	IsGrabbing  bool     `json:"isGrabbing"`
	IsGrabbed   bool     `json:"isGrabbed"`
	IsEliminated bool    `json:"isEliminated"`
	Number      int      `json:"number"`
	State       string   `json:"state"`
}

func (f *fighter) view() view {
	return view{
		ID:           f.id.String(),
		Position:     position{X: round2(f.x), Y: round2(f.y)},
		FacingAngle:  round2(math.Atan2(f.facingY, f.facingX)),
		Health:       round2(f.health),
		Stamina:      round2(f.stamina),
		IsGrabbing:   f.state == stateGrabbing,
		IsGrabbed:    f.state == stateGrabbed,
		IsEliminated: f.state == stateEliminated,
		Number:       f.number,
		State:        string(f.state),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
