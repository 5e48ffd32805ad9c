package arena

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

// moveSpeed is the base ring-plane travel speed; a fighter holding
// Run covers ground at runSpeed instead (spec §4.4.1). Running does not
// affect stamina.
const (
	moveSpeed    = 180.0
	runSpeed     = 260.0
	grabForgiveAngle = config.GrabFacingCos
)

// Simulation is the Arena mode's sim.Simulation implementation. Only
// the Loop Runtime's single worker goroutine for this room ever calls
// into it (spec §5), so none of its state needs its own locking.
type Simulation struct {
	fighters map[uuid.UUID]*fighter
	order    []uuid.UUID

	pending []pendingAction
	events  []sim.Event

	roundOver bool
}

type pendingAction struct {
	ParticipantID uuid.UUID
	Kind          string
	Target        uuid.UUID
	Direction     *float64
}

// New constructs a fresh Arena simulation for the given roster,
// spreading fighters evenly around the ring's spawn circle (spec
// §4.4.1 "Round start").
func New(mode string, participants []sim.Participant) (sim.Simulation, error) {
	s := &Simulation{fighters: make(map[uuid.UUID]*fighter)}
	n := len(participants)
	for i, p := range participants {
		angle := 2 * math.Pi * float64(i) / float64(max(n, 1))
		f := newFighter(p, angle)
		s.fighters[p.ID] = f
		s.order = append(s.order, p.ID)
	}
	return s, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (s *Simulation) Mode() string { return "arena" }

func (s *Simulation) ApplyInput(participantID uuid.UUID, in sim.Input) {
	f, ok := s.fighters[participantID]
	if !ok || !f.alive() {
		return
	}
	f.in = in
}

type actionPayload struct {
	TargetID string `json:"targetId"`
}

// QueueAction buffers a one-shot combat action for the next Tick. kind
// is the raw wire event name (spec §6 "Arena-specific": arena-attack,
// arena-grab, arena-throw, arena-block, arena-escape). Per spec §4.4.3
// only one action is honored per fighter per tick; later actions
// queued before the same tick processes simply replace the buffered
// one (teacher's Player.QueueInput has the same last-writer-wins
// buffering for a single pending slot).
func (s *Simulation) QueueAction(participantID uuid.UUID, kind string, payload json.RawMessage) {
	f, ok := s.fighters[participantID]
	if !ok || !f.alive() {
		return
	}

	var resolved pendingAction
	resolved.ParticipantID = participantID

	switch kind {
	case "arena-attack":
		var attackType string
		_ = json.Unmarshal(payload, &attackType)
		if attackType != "punch" && attackType != "kick" {
			attackType = "punch"
		}
		resolved.Kind = attackType
	case "arena-grab":
		resolved.Kind = "grab"
	case "arena-throw":
		resolved.Kind = "throw"
		var direction *float64
		_ = json.Unmarshal(payload, &direction)
		resolved.Direction = direction
	case "arena-escape":
		resolved.Kind = "escape"
	case "arena-block":
		var blocking bool
		_ = json.Unmarshal(payload, &blocking)
		if blocking {
			resolved.Kind = "block_start"
		} else {
			resolved.Kind = "block_end"
		}
	default:
		// Legacy/internal kind names (used directly by tests) pass
		// through unchanged, carrying an explicit targetId if given.
		resolved.Kind = kind
		if len(payload) > 0 {
			var p actionPayload
			if json.Unmarshal(payload, &p) == nil && p.TargetID != "" {
				if id, err := uuid.Parse(p.TargetID); err == nil {
					resolved.Target = id
				}
			}
		}
	}

	for i, pa := range s.pending {
		if pa.ParticipantID == participantID {
			s.pending[i] = resolved
			return
		}
	}
	s.pending = append(s.pending, resolved)
}

func (s *Simulation) RemoveParticipant(participantID uuid.UUID) {
	f, ok := s.fighters[participantID]
	if !ok {
		return
	}
	if f.alive() {
		s.eliminate(f, "ko")
	}
}

// Tick advances combat by dt seconds, in the order spec §4.3 mandates:
// inputs are already applied; here we resolve queued actions, advance
// movement and the per-fighter state machine, run collisions, then
// eliminations, and finally check for a round winner.
func (s *Simulation) Tick(dt float64) sim.Outcome {
	s.events = nil

	s.resolveActions()
	for _, id := range s.order {
		f := s.fighters[id]
		if !f.alive() {
			continue
		}
		s.advance(f, dt)
	}
	s.resolveCollisions()
	s.checkRingOuts()

	if alive := s.aliveCount(); alive <= 1 && len(s.order) > 1 {
		w := s.soleSurvivor()
		payload := map[string]any{}
		if w != nil {
			payload["winner"] = w.id.String()
		}
		s.emit("arena-game-over", payload)
		s.roundOver = true
		outcome := sim.Outcome{Events: s.events, RoundOver: true}
		if w != nil {
			outcome.WinnerID = &w.id
			outcome.WinnerName = w.name
		}
		return outcome
	}
	return sim.Outcome{Events: s.events}
}

func (s *Simulation) aliveCount() int {
	n := 0
	for _, f := range s.fighters {
		if f.alive() {
			n++
		}
	}
	return n
}

func (s *Simulation) soleSurvivor() *fighter {
	for _, f := range s.fighters {
		if f.alive() {
			return f
		}
	}
	return nil
}

func (s *Simulation) emit(name string, payload any) {
	s.events = append(s.events, sim.Event{Name: name, Payload: payload})
}

// resolveActions starts new attacks/grabs/throws/escapes for fighters
// that are free to act this tick (spec §4.4.3 action legality table).
func (s *Simulation) resolveActions() {
	actions := s.pending
	s.pending = nil

	for _, a := range actions {
		f, ok := s.fighters[a.ParticipantID]
		if !ok || !f.alive() {
			continue
		}
		switch a.Kind {
		case "punch", "kick":
			if !f.canAct() {
				continue
			}
			f.state = stateAttacking
			f.attack = attackKind(a.Kind)
			f.attackFrame = 0
			f.hasHit = false
			s.emit("arena-attack-started", map[string]any{
				"attackerId": f.id.String(),
				"attackType": a.Kind,
			})
		case "grab":
			if !f.canAct() {
				continue
			}
			s.tryGrab(f, a.Target)
		case "escape":
			s.tryEscape(f)
		case "throw":
			s.tryThrow(f, a.Direction)
		case "block_start":
			if f.canAct() {
				f.blocking = true
				f.state = stateBlocking
				s.emit("arena-block-state", map[string]any{"playerId": f.id.String(), "isBlocking": true})
			}
		case "block_end":
			if f.state == stateBlocking {
				f.blocking = false
				f.state = stateIdle
				s.emit("arena-block-state", map[string]any{"playerId": f.id.String(), "isBlocking": false})
			}
		}
	}
}

// tryGrab resolves a grab action. If targetID is the zero UUID (the
// normal wire path, spec §4.4.4 item 4: "find the nearest valid target
// within GRAB_RANGE"), the nearest eligible fighter is chosen
// automatically; an explicit targetID (used by tests and by any future
// target-lock UI) is honored as-is if still eligible.
func (s *Simulation) tryGrab(f *fighter, targetID uuid.UUID) {
	var target *fighter
	if targetID != uuid.Nil {
		target = s.fighters[targetID]
	} else {
		target = s.nearestGrabbable(f)
	}
	if target == nil || !s.grabEligible(f, target) {
		return
	}

	f.state = stateGrabbing
	f.grabTarget = target.id
	target.state = stateGrabbed
	target.grabTarget = f.id
	f.grabFrames = 0
	target.escapeTries = 0
	s.emit("arena-grab", map[string]any{
		"grabberId": f.id.String(),
		"targetId":  target.id.String(),
	})
}

// grabEligible reports whether target can legally be grabbed by f
// right now: alive, not already grabbed/thrown, within grab range, and
// facing the target within the forgiveness cone (spec §4.4.2 "grabbing").
func (s *Simulation) grabEligible(f, target *fighter) bool {
	if !target.alive() || target.state == stateGrabbed || target.state == stateThrown {
		return false
	}
	dx, dy := target.x-f.x, target.y-f.y
	dist := math.Hypot(dx, dy)
	if dist > config.GrabRange {
		return false
	}
	nx, ny := normalize(dx, dy)
	return nx*f.facingX+ny*f.facingY >= grabForgiveAngle
}

// nearestGrabbable finds the closest fighter f can legally grab right
// now (spec §4.4.4 item 4). Ties (equal distance) resolve to whichever
// fighter appears earlier in room join order, a stable deterministic
// pick.
func (s *Simulation) nearestGrabbable(f *fighter) *fighter {
	var best *fighter
	bestDist := math.Inf(1)
	for _, id := range s.order {
		cand := s.fighters[id]
		if cand == nil || cand.id == f.id || !s.grabEligible(f, cand) {
			continue
		}
		dist := math.Hypot(cand.x-f.x, cand.y-f.y)
		if dist < bestDist {
			best, bestDist = cand, dist
		}
	}
	return best
}

func (s *Simulation) tryEscape(f *fighter) {
	if f.state != stateGrabbed {
		return
	}
	f.escapeTries++
	if f.escapeTries >= config.EscapeThreshold {
		grabberID := f.grabTarget
		s.releaseGrab(f, false)
		s.emit("arena-grab-escape", map[string]any{
			"grabberId": grabberID.String(),
			"targetId":  f.id.String(),
		})
	}
}

// tryThrow resolves a throw action from the grabber. direction, if
// non-nil, is a radian angle (spec §6 "arena-throw direction:number|
// null") overriding the grabber's current facing for the launch
// vector; nil falls back to facing, the grabber's natural throw.
func (s *Simulation) tryThrow(f *fighter, direction *float64) {
	if f.state != stateGrabbing {
		return
	}
	target, ok := s.fighters[f.grabTarget]
	if !ok {
		f.state = stateIdle
		return
	}
	fx, fy := f.facingX, f.facingY
	if direction != nil {
		fx, fy = math.Cos(*direction), math.Sin(*direction)
	}
	target.state = stateThrown
	target.thrownVX = fx * config.ThrowForwardSpeed
	target.thrownVY = fy * config.ThrowForwardSpeed
	target.health += config.ThrowDamage
	f.state = stateIdle
	f.grabTarget = uuid.Nil
	s.emit("arena-throw", map[string]any{
		"grabberId": f.id.String(),
		"targetId":  target.id.String(),
		"damage":    config.ThrowDamage,
	})
	if target.health >= config.MaxHealth {
		s.eliminate(target, "ko")
	}
}

// releaseGrab ends a grab without a throw, e.g. on a successful escape
// or the grab timing out (spec §4.4.3 "a stale grab auto-releases").
func (s *Simulation) releaseGrab(target *fighter, timedOut bool) {
	if grabber, ok := s.fighters[target.grabTarget]; ok && grabber.state == stateGrabbing {
		grabber.state = stateIdle
		grabber.grabTarget = uuid.Nil
	}
	target.state = stateIdle
	target.grabTarget = uuid.Nil
	if timedOut {
		s.emit("arena-grab-released", map[string]any{"participantId": target.id.String(), "reason": "timeout"})
	}
}

// advance steps one fighter's physics and state machine by dt.
func (s *Simulation) advance(f *fighter, dt float64) {
	switch f.state {
	case stateIdle, stateBlocking:
		s.move(f, dt)
		s.updateStamina(f, dt)
	case stateAttacking:
		s.advanceAttack(f, dt)
	case stateGrabbing:
		f.grabFrames++
		if float64(f.grabFrames)/60.0 > config.GrabTimeout.Seconds() {
			if target, ok := s.fighters[f.grabTarget]; ok {
				s.releaseGrab(target, true)
			}
		}
	case stateGrabbed:
		// Position is pinned to the grabber, a body-length in front.
		if grabber, ok := s.fighters[f.grabTarget]; ok {
			f.x = grabber.x + grabber.facingX*config.ColliderRadius*2
			f.y = grabber.y + grabber.facingY*config.ColliderRadius*2
		}
	case stateThrown:
		f.x += f.thrownVX * dt
		f.y += f.thrownVY * dt
		f.thrownVX *= 0.9
		f.thrownVY *= 0.9
		if math.Hypot(f.thrownVX, f.thrownVY) < 20 {
			f.state = stateStunned
			f.stunRemaining = config.StunDuration.Seconds()
		}
	case stateStunned:
		f.stunRemaining -= dt
		if f.stunRemaining <= 0 {
			f.state = stateIdle
		}
	}
}

func (s *Simulation) move(f *fighter, dt float64) {
	dx, dy := 0.0, 0.0
	if f.in.Left {
		dx -= 1
	}
	if f.in.Right {
		dx += 1
	}
	if f.in.Up {
		dy -= 1
	}
	if f.in.Down {
		dy += 1
	}
	if dx == 0 && dy == 0 {
		return
	}
	if f.blocking {
		// Blocking roots the fighter in place (spec §4.4.3).
		return
	}
	nx, ny := normalize(dx, dy)
	f.facingX, f.facingY = nx, ny
	speed := moveSpeed
	if f.in.Run {
		speed = runSpeed
	}
	f.x += nx * speed * dt
	f.y += ny * speed * dt
}

func (s *Simulation) updateStamina(f *fighter, dt float64) {
	if f.blocking {
		f.stamina -= config.StaminaDrainRate * dt
		if f.stamina <= 0 {
			f.stamina = 0
			f.blocking = false
			f.state = stateIdle
		}
	} else if f.stamina < config.MaxStamina {
		f.stamina += config.StaminaDrainRate * 0.5 * dt
		if f.stamina > config.MaxStamina {
			f.stamina = config.MaxStamina
		}
	}
}

func (s *Simulation) advanceAttack(f *fighter, dt float64) {
	spec := attackSpecs[f.attack]
	frameDt := dt * 60.0 // constants are authored in 60Hz frame units
	f.attackFrame += int(math.Round(frameDt))
	if f.attackFrame >= spec.Windup && f.attackFrame < spec.Windup+spec.Active && !f.hasHit {
		s.checkStrike(f, spec)
	}
	if f.attackFrame >= spec.Windup+spec.Active+spec.Recovery {
		f.state = stateIdle
		f.attackFrame = 0
	}
}

// checkStrike enforces spec §4.4.4's single-hit-per-strike invariant:
// hasHit latches true the instant a strike connects, so a multi-frame
// active window can never land twice on the same swing.
func (s *Simulation) checkStrike(f *fighter, spec attackSpec) {
	const strikeRange = config.ColliderRadius*2 + 30.0
	for _, id := range s.order {
		target := s.fighters[id]
		if target == nil || target.id == f.id || !target.alive() {
			continue
		}
		dx, dy := target.x-f.x, target.y-f.y
		dist := math.Hypot(dx, dy)
		if dist > strikeRange {
			continue
		}
		nx, ny := normalize(dx, dy)
		if nx*f.facingX+ny*f.facingY < 0.3 {
			continue
		}
		f.hasHit = true
		s.applyDamage(f, target, spec.Damage, nx, ny)
		return
	}
}

func (s *Simulation) applyDamage(attacker, target *fighter, damage, nx, ny float64) {
	dealt := damage
	blocked := false
	if target.blocking {
		tnx, tny := -target.facingX, -target.facingY
		if nx*tnx+ny*tny >= config.BlockAngleCos {
			dealt *= config.BlockFactor
			blocked = true
		}
	}
	target.health += dealt
	// Knockback pushes the target back along the strike direction.
	push := dealt * 4
	target.x += nx * push * 0.02
	target.y += ny * push * 0.02

	s.emit("arena-attack-hit", map[string]any{
		"attackerId": attacker.id.String(),
		"targetId":   target.id.String(),
		"damage":     round2(dealt),
		"newHealth":  round2(target.health),
		"blocked":    blocked,
	})

	if target.health >= config.MaxHealth {
		s.eliminate(target, "ko")
	}
}

// resolveCollisions pushes overlapping fighters apart, grounded on the
// teacher's Physics.CheckCollision circular-collider separation.
func (s *Simulation) resolveCollisions() {
	for i := 0; i < len(s.order); i++ {
		a := s.fighters[s.order[i]]
		if a == nil || !a.alive() {
			continue
		}
		for j := i + 1; j < len(s.order); j++ {
			b := s.fighters[s.order[j]]
			if b == nil || !b.alive() {
				continue
			}
			dx, dy := b.x-a.x, b.y-a.y
			dist := math.Hypot(dx, dy)
			minDist := config.ColliderRadius * 2
			if dist >= minDist || dist < 1e-6 {
				continue
			}
			overlap := minDist - dist
			nx, ny := dx/dist, dy/dist
			a.x -= nx * overlap * 0.5
			a.y -= ny * overlap * 0.5
			b.x += nx * overlap * 0.5
			b.y += ny * overlap * 0.5
		}
	}
}

// checkRingOuts eliminates any fighter who has crossed the rope line
// (spec §4.4.5), applying rope-bounce for a near miss and ring-out
// damage plus elimination for a fighter that clears the rope entirely.
func (s *Simulation) checkRingOuts() {
	for _, id := range s.order {
		f := s.fighters[id]
		if f == nil || !f.alive() || f.state == stateGrabbed {
			continue
		}
		dist := math.Hypot(f.x, f.y)
		ringEdge := config.RingSize * 0.5
		if dist > config.RingOutRadius {
			f.health += config.RingOutDamage
			s.emit("arena-ring-out", map[string]any{"participantId": f.id.String()})
			s.eliminate(f, "ringout")
			continue
		}
		if dist > ringEdge {
			// Rope bounce: reflect the fighter back toward center.
			nx, ny := normalize(f.x, f.y)
			f.x = nx * ringEdge
			f.y = ny * ringEdge
			bounce := config.RopeBounce
			f.x -= nx * bounce * (dist - ringEdge)
			f.y -= ny * bounce * (dist - ringEdge)
		}
	}
}

func (s *Simulation) eliminate(f *fighter, reason string) {
	if f.state == stateEliminated {
		return
	}
	if f.state == stateGrabbing {
		if target, ok := s.fighters[f.grabTarget]; ok {
			s.releaseGrab(target, false)
		}
	}
	f.state = stateEliminated
	if f.health < config.MaxHealth {
		f.health = config.MaxHealth
	}
	s.emit("arena-elimination", map[string]any{
		"playerId":   f.id.String(),
		"playerName": f.name,
		"reason":     reason,
	})
}

type snapshot struct {
	Fighters []view `json:"fighters"`
}

func (s *Simulation) Snapshot() any {
	out := snapshot{Fighters: make([]view, 0, len(s.order))}
	for _, id := range s.order {
		out.Fighters = append(out.Fighters, s.fighters[id].view())
	}
	return out
}
