// Package lobby implements the room registry and pre-game
// orchestration described in spec §4.2: room creation, join/leave,
// ready, character selection, and mode dispatch into an active
// simulation. Generalizes the teacher's Room (internal/game/room.go)
// — one racing room with a hardcoded Player map — into a room that
// holds an arbitrary participant roster and a pluggable sim.Simulation
// behind the lobby/tournament state machine spec §3 describes.
package lobby

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

// State is a Room's lifecycle stage (spec §3).
type State string

const (
	StateLobby         State = "lobby"
	StatePlaying        State = "playing"
	StateRoundEnd       State = "round_end"
	StateTournamentEnd  State = "tournament_end"
	StateClosed         State = "closed"
)

var (
	ErrRoomFull         = errors.New("room_full")
	ErrRoomInGame       = errors.New("room_in_game")
	ErrCharacterTaken   = errors.New("character_taken")
	ErrNotHost          = errors.New("not_host")
	ErrNotLobby         = errors.New("not_in_lobby")
	ErrNoReadyPlayers   = errors.New("no_ready_players")
	ErrParticipantGone  = errors.New("participant_not_found")
)

// modeCaps gives the max participant count per mode; anything not
// listed falls back to config.MaxParticipantsPerRoom.
var modeCaps = map[string]int{
	"arena": config.MaxParticipantsArena,
}

// Room is the top-level session container (spec §3 "Room"). Exactly
// one Room instance exists per live code; it exclusively owns its
// Participants and its active Simulation.
type Room struct {
	mu sync.Mutex

	Code string
	Mode string
	State State

	participants map[uuid.UUID]*Participant
	order        []uuid.UUID // join order, for host promotion and numbering
	nextNumber   int
	characters   map[string]uuid.UUID // characterID -> participant ID

	hostID uuid.UUID

	// Tournament (spec §3 "Tournament").
	TournamentRounds int
	CurrentRound     int
	RoundWins        map[uuid.UUID]int
	LastRoundWinner  uuid.UUID
	TournamentOver   bool

	Simulation sim.Simulation

	LastActivity time.Time
	CreatedAt    time.Time
}

func newRoom(code, mode string) *Room {
	now := time.Now()
	return &Room{
		Code:         code,
		Mode:         mode,
		State:        StateLobby,
		participants: make(map[uuid.UUID]*Participant),
		characters:   make(map[string]uuid.UUID),
		nextNumber:   1,
		TournamentRounds: 1,
		CurrentRound:     1,
		RoundWins:        make(map[uuid.UUID]int),
		LastActivity: now,
		CreatedAt:    now,
	}
}

func (r *Room) capacity() int {
	if n, ok := modeCaps[r.Mode]; ok {
		return n
	}
	return config.MaxParticipantsPerRoom
}

func (r *Room) touch() {
	r.LastActivity = time.Now()
}

// AddParticipant joins a new participant to the room. The first
// participant ever added becomes host (spec §3 "host is always the
// first member").
func (r *Room) AddParticipant(id uuid.UUID, displayName string) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != StateLobby {
		return nil, ErrRoomInGame
	}
	if len(r.participants) >= r.capacity() {
		return nil, ErrRoomFull
	}

	number := r.nextNumber
	r.nextNumber++

	role := RoleGuest
	if len(r.participants) == 0 {
		role = RoleHost
		r.hostID = id
	}

	p := &Participant{
		ID:          id,
		DisplayName: displayName,
		Number:      number,
		Color:       colorFor(number),
		Role:        role,
	}
	r.participants[id] = p
	r.order = append(r.order, id)
	r.touch()
	return p, nil
}

// RemoveParticipant removes a participant, sweeping orphaned
// character selections and promoting a new host if needed (spec
// §4.2 "leave-room"). Removing an unknown id is a no-op.
func (r *Room) RemoveParticipant(id uuid.UUID) (removed *Participant, newHost *Participant, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return nil, nil, len(r.participants) == 0
	}
	delete(r.participants, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if p.Character != "" {
		delete(r.characters, p.Character)
	}
	r.touch()

	if len(r.participants) == 0 {
		return p, nil, true
	}

	if r.hostID == id {
		// Promote the participant with the lowest number.
		var best *Participant
		for _, op := range r.participants {
			if best == nil || op.Number < best.Number {
				best = op
			}
		}
		best.Role = RoleHost
		r.hostID = best.ID
		newHost = best
	}

	return p, newHost, false
}

// SetReady updates a participant's ready flag. No-op on unknown id.
func (r *Room) SetReady(id uuid.UUID, ready bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return false
	}
	p.Ready = ready
	r.touch()
	return true
}

// SelectCharacter performs the compare-and-set character-uniqueness
// algorithm from spec §4.2: the selection only mutates state if no
// other participant currently holds charID.
func (r *Room) SelectCharacter(id uuid.UUID, charID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return ErrParticipantGone
	}
	if holder, taken := r.characters[charID]; taken && holder != id {
		return ErrCharacterTaken
	}
	if p.Character != "" {
		delete(r.characters, p.Character)
	}
	p.Character = charID
	r.characters[charID] = id
	r.touch()
	return nil
}

// DeselectCharacter clears a participant's character pick, freeing it
// for anyone else to take (spec §6 "character-deselected" diff).
func (r *Room) DeselectCharacter(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return ErrParticipantGone
	}
	if p.Character != "" {
		delete(r.characters, p.Character)
		p.Character = ""
	}
	r.touch()
	return nil
}

// CanStart reports whether host may start the game: caller must be
// host, room must be in lobby, and at least one participant ready.
func (r *Room) CanStart(hostCandidate uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != StateLobby {
		return ErrNotLobby
	}
	if r.hostID != hostCandidate {
		return ErrNotHost
	}
	anyReady := false
	for _, p := range r.participants {
		if p.Ready {
			anyReady = true
			break
		}
	}
	if !anyReady {
		return ErrNoReadyPlayers
	}
	return nil
}

// BeginPlaying installs the freshly constructed Simulation and
// transitions the room to "playing".
func (r *Room) BeginPlaying(simulation sim.Simulation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Simulation = simulation
	r.State = StatePlaying
	r.touch()
}

// EnterRoundTransition moves the room into round_end while the
// tournament controller's delay timer runs (spec §4.6).
func (r *Room) EnterRoundTransition() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = StateRoundEnd
	r.touch()
}

// EndTournament marks the room's tournament complete and moves it to
// tournament_end (spec §4.6 terminal transition); ReturnToLobby is the
// separate step back to "lobby".
func (r *Room) EndTournament() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TournamentOver = true
	r.State = StateTournamentEnd
	r.Simulation = nil
	r.touch()
}

// ReturnToLobby resets the room back to "lobby" for a rematch, per
// spec §3 Room lifecycle. Ready flags are cleared; participants,
// their character selections, and tournament history are preserved.
func (r *Room) ReturnToLobby() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = StateLobby
	r.Simulation = nil
	for _, p := range r.participants {
		p.Ready = false
	}
	r.touch()
}

// Close marks the room closed; callers are responsible for stopping
// its loop and removing it from the registry.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = StateClosed
	r.Simulation = nil
}

// Configure sets the tournament round count; only valid in lobby.
func (r *Room) Configure(rounds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State != StateLobby {
		return ErrNotLobby
	}
	if rounds < 1 {
		rounds = 1
	}
	r.TournamentRounds = rounds
	r.CurrentRound = 1
	r.touch()
	return nil
}

// IsEmpty reports whether the room has no participants.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0
}

// IsIdle reports whether the room has sat in lobby past maxIdle.
func (r *Room) IsIdle(maxIdle time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State == StateLobby && time.Since(r.LastActivity) > maxIdle
}

// HostID returns the current host's participant id.
func (r *Room) HostID() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// Participant looks up a participant by id.
func (r *Room) Participant(id uuid.UUID) (*Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	return p, ok
}

// ParticipantIDs returns a stable-ordered snapshot of member ids.
func (r *Room) ParticipantIDs() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uuid.UUID, len(r.order))
	copy(out, r.order)
	return out
}

// ParticipantView is the JSON-serializable summary of a participant
// used across lobby broadcasts.
type ParticipantView struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Ready     bool   `json:"ready"`
	Character string `json:"character,omitempty"`
	Role      string `json:"role"`
}

func viewOf(p *Participant) ParticipantView {
	return ParticipantView{
		ID:        p.ID.String(),
		Number:    p.Number,
		Name:      p.DisplayName,
		Color:     p.Color,
		Ready:     p.Ready,
		Character: p.Character,
		Role:      string(p.Role),
	}
}

// CharacterSelection is one entry of the character-selection-update
// broadcast (spec §6 "select-character").
type CharacterSelection struct {
	PlayerID   string `json:"playerId"`
	Character  string `json:"character"`
	PlayerName string `json:"playerName"`
}

// Selections returns every participant's current character pick, in
// join order, for the character-selection-update broadcast.
func (r *Room) Selections() []CharacterSelection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CharacterSelection, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		if p.Character == "" {
			continue
		}
		out = append(out, CharacterSelection{PlayerID: p.ID.String(), Character: p.Character, PlayerName: p.DisplayName})
	}
	return out
}

// Players returns the room's roster in join order, for join-room
// responses and game-started broadcasts (spec §6).
func (r *Room) Players() []ParticipantView {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ParticipantView, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, viewOf(r.participants[id]))
	}
	return out
}

// Snapshot describes the room for the join-room response payload.
type Snapshot struct {
	Code        string            `json:"code"`
	GameMode    string            `json:"gameMode"`
	PlayerCount int               `json:"playerCount"`
	Players     []ParticipantView `json:"players"`
}

// RoomSnapshot builds the join-room "room" field.
func (r *Room) RoomSnapshot() Snapshot {
	players := r.Players()
	return Snapshot{
		Code:        r.Code,
		GameMode:    r.Mode,
		PlayerCount: len(players),
		Players:     players,
	}
}

// PlayerScores returns each participant's accumulated round-win count,
// keyed by display name, for the round-ended/tournament-ended
// broadcasts (spec §6).
func (r *Room) PlayerScores() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.order))
	for _, id := range r.order {
		out[r.participants[id].DisplayName] = r.RoundWins[id]
	}
	return out
}

// simParticipants converts the current roster into sim.Participant for
// Simulation construction.
func (r *Room) simParticipants() []sim.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sim.Participant, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		out = append(out, sim.Participant{ID: p.ID, Name: p.DisplayName, Number: p.Number})
	}
	return out
}

// CurrentState is a thread-safe read of State, the room's current
// lifecycle stage.
func (r *Room) CurrentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}
