package lobby

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/loop"
	"github.com/partyarena/arenaserver/internal/sim"
	"github.com/partyarena/arenaserver/internal/tournament"
)

// Broadcaster is the subset of transport.Hub the manager needs for
// room membership and lobby-state broadcasts.
type Broadcaster interface {
	JoinRoom(participantID uuid.UUID, roomCode string)
	LeaveRoom(participantID uuid.UUID)
	To(participantID uuid.UUID, event string, payload any)
	Broadcast(roomCode, event string, payload any, except *uuid.UUID)
}

// Manager is the room registry and Dispatcher implementation (spec
// §4.2). It generalizes the teacher's Matchmaker (one map[string]*Room
// guarded by a mutex, GetOrCreateRoom/RemoveRoom/CleanupEmptyRooms) to
// route every lobby operation and forward in-game events into the Loop
// Runtime instead of owning physics itself.
type Manager struct {
	log     *zap.Logger
	hub     Broadcaster
	runtime *loop.Runtime
	factory sim.Factory
	cfg     *config.Server

	mu       sync.Mutex
	rooms    map[string]*Room
	roomOf   map[uuid.UUID]string // participant -> room code
}

// New creates a Manager. factory builds the Simulation for a room's
// selected mode once at least one participant is ready and the host
// starts the game (spec §4.2 "start-game").
func New(log *zap.Logger, hub Broadcaster, runtime *loop.Runtime, factory sim.Factory, cfg *config.Server) *Manager {
	m := &Manager{
		log:     log,
		hub:     hub,
		runtime: runtime,
		factory: factory,
		cfg:     cfg,
		rooms:   make(map[string]*Room),
		roomOf:  make(map[uuid.UUID]string),
	}
	runtime.SetRoundOverFunc(m.handleRoundOver)
	return m
}

// StartCleanup launches the background sweep that closes idle lobby
// rooms, mirroring the teacher's periodic CleanupEmptyRooms goroutine.
func (m *Manager) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			m.sweepIdleRooms()
		}
	}()
}

func (m *Manager) sweepIdleRooms() {
	m.mu.Lock()
	var dead []string
	for code, r := range m.rooms {
		if r.IsEmpty() || r.IsIdle(m.cfg.RoomIdleClose) {
			dead = append(dead, code)
		}
	}
	for _, code := range dead {
		delete(m.rooms, code)
	}
	m.mu.Unlock()

	for _, code := range dead {
		m.runtime.StopRoom(code)
		m.log.Info("room closed", zap.String("room", code))
	}
}

// Stats reports the number of live rooms, used by the /stats endpoint.
func (m *Manager) Stats() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *Manager) roomFor(participantID uuid.UUID) *Room {
	m.mu.Lock()
	code, ok := m.roomOf[participantID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	r := m.rooms[code]
	m.mu.Unlock()
	return r
}

func (m *Manager) bind(participantID uuid.UUID, code string) {
	m.mu.Lock()
	m.roomOf[participantID] = code
	m.mu.Unlock()
	m.hub.JoinRoom(participantID, code)
}

func (m *Manager) unbind(participantID uuid.UUID) {
	m.mu.Lock()
	delete(m.roomOf, participantID)
	m.mu.Unlock()
	m.hub.LeaveRoom(participantID)
}

// fail sends a {success:false, error:"<code>"} reply (spec §6/§7: error
// is a bare string error kind, e.g. "room_not_found", "character_taken").
func fail(reply func(bool, any), code string) {
	if reply != nil {
		reply(false, map[string]any{"error": code})
	}
}

func ok(reply func(bool, any), data map[string]any) {
	if reply != nil {
		reply(true, data)
	}
}

// Dispatch routes one inbound envelope. Lobby-control events are
// handled directly; everything else is forwarded into the room's
// active Simulation via the Loop Runtime (spec §4.3 step 1 handoff).
func (m *Manager) Dispatch(participantID uuid.UUID, event string, payload json.RawMessage, reply func(bool, any)) {
	switch event {
	case "create-room":
		m.handleCreateRoom(participantID, payload, reply)
	case "join-room":
		m.handleJoinRoom(participantID, payload, reply)
	case "leave-room":
		m.handleLeaveRoom(participantID, reply)
	case "player-ready":
		m.handleSetReady(participantID, payload, reply)
	case "select-character":
		m.handleSelectCharacter(participantID, payload, reply)
	case "configure-tournament":
		m.handleConfigure(participantID, payload, reply)
	case "start-game":
		m.handleStartGame(participantID, reply)
	case "player-input":
		m.handleInput(participantID, payload)
	default:
		m.handleAction(participantID, event, payload)
	}
}

// Disconnected handles an abrupt transport loss. Per the disconnect
// grace window (spec §4.1 generalization of the teacher's pong
// timeout), the participant's slot is removed from both the lobby
// roster and any running simulation only after the grace period
// elapses with no replacement connection — this server does not
// support session resumption, so the grace window exists solely to
// avoid a flapping client tearing down a room mid-tick.
func (m *Manager) Disconnected(participantID uuid.UUID) {
	time.AfterFunc(m.cfg.DisconnectGrace, func() {
		m.removeParticipant(participantID)
	})
}

type createRoomPayload struct {
	GameMode    string `json:"gameMode"`
	DisplayName string `json:"displayName"`
}

func (m *Manager) handleCreateRoom(participantID uuid.UUID, payload json.RawMessage, reply func(bool, any)) {
	var req createRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.GameMode == "" {
		fail(reply, "invalid_payload")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = "Host"
	}

	m.mu.Lock()
	var code string
	for {
		code = generateCode()
		if _, exists := m.rooms[code]; !exists {
			break
		}
	}
	r := newRoom(code, req.GameMode)
	m.rooms[code] = r
	m.mu.Unlock()

	p, err := r.AddParticipant(participantID, req.DisplayName)
	if err != nil {
		m.mu.Lock()
		delete(m.rooms, code)
		m.mu.Unlock()
		fail(reply, "create_failed")
		return
	}
	m.bind(participantID, code)

	m.log.Info("room created", zap.String("room", code), zap.String("mode", req.GameMode), zap.String("host", p.ID.String()))
	ok(reply, map[string]any{
		"roomCode":      code,
		"participantId": p.ID.String(),
		"number":        p.Number,
		"color":         p.Color,
		"role":          string(p.Role),
	})
}

type joinRoomPayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

func (m *Manager) handleJoinRoom(participantID uuid.UUID, payload json.RawMessage, reply func(bool, any)) {
	var req joinRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.RoomCode == "" || req.PlayerName == "" {
		fail(reply, "invalid_payload")
		return
	}

	code := strings.ToUpper(req.RoomCode)
	m.mu.Lock()
	r, exists := m.rooms[code]
	m.mu.Unlock()
	if !exists {
		fail(reply, "room_not_found")
		return
	}

	p, err := r.AddParticipant(participantID, req.PlayerName)
	if err != nil {
		fail(reply, err.Error())
		return
	}
	m.bind(participantID, code)

	m.hub.Broadcast(code, "player-joined", r.Players(), &participantID)
	ok(reply, map[string]any{
		"player": map[string]any{
			"id":     p.ID.String(),
			"number": p.Number,
			"color":  p.Color,
			"name":   p.DisplayName,
		},
		"room": r.RoomSnapshot(),
	})
}

func (m *Manager) handleLeaveRoom(participantID uuid.UUID, reply func(bool, any)) {
	m.removeParticipant(participantID)
	ok(reply, nil)
}

func (m *Manager) removeParticipant(participantID uuid.UUID) {
	r := m.roomFor(participantID)
	if r == nil {
		return
	}
	code := r.Code

	_, newHost, empty := r.RemoveParticipant(participantID)
	m.unbind(participantID)

	if r.CurrentState() == StatePlaying && r.Simulation != nil {
		m.runtime.RemoveParticipant(code, participantID)
	}

	if empty {
		m.mu.Lock()
		delete(m.rooms, code)
		m.mu.Unlock()
		m.runtime.StopRoom(code)
		m.log.Info("room emptied", zap.String("room", code))
		return
	}

	m.hub.Broadcast(code, "player-left", map[string]any{
		"participantId": participantID.String(),
		"players":       r.Players(),
	}, nil)

	if newHost != nil {
		m.hub.Broadcast(code, "host-changed", map[string]any{"hostId": newHost.ID.String()}, nil)
	}
}

type readyPayload struct {
	Ready bool `json:"ready"`
}

func (m *Manager) handleSetReady(participantID uuid.UUID, payload json.RawMessage, reply func(bool, any)) {
	r := m.roomFor(participantID)
	if r == nil {
		fail(reply, "room_not_found")
		return
	}
	var req readyPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		fail(reply, "invalid_payload")
		return
	}
	r.SetReady(participantID, req.Ready)
	m.hub.Broadcast(r.Code, "player-ready-changed", map[string]any{"room": r.RoomSnapshot()}, nil)
	ok(reply, nil)
}

type selectCharacterPayload struct {
	CharacterID   string `json:"characterId"`
	CharacterName string `json:"characterName"`
}

func (m *Manager) handleSelectCharacter(participantID uuid.UUID, payload json.RawMessage, reply func(bool, any)) {
	r := m.roomFor(participantID)
	if r == nil {
		fail(reply, "room_not_found")
		return
	}
	var req selectCharacterPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		fail(reply, "invalid_payload")
		return
	}
	if req.CharacterID == "" {
		if err := r.DeselectCharacter(participantID); err != nil {
			fail(reply, err.Error())
			return
		}
		ok(reply, nil)
		m.hub.Broadcast(r.Code, "character-deselected", map[string]any{"playerId": participantID.String()}, nil)
		m.hub.Broadcast(r.Code, "character-selection-update", map[string]any{"selections": r.Selections()}, nil)
		return
	}
	if err := r.SelectCharacter(participantID, req.CharacterID); err != nil {
		fail(reply, err.Error())
		return
	}
	ok(reply, nil)
	m.hub.Broadcast(r.Code, "character-selected", map[string]any{
		"playerId":  participantID.String(),
		"character": req.CharacterID,
	}, nil)
	m.hub.Broadcast(r.Code, "character-selection-update", map[string]any{"selections": r.Selections()}, nil)
}

type configurePayload struct {
	Rounds int `json:"rounds"`
}

func (m *Manager) handleConfigure(participantID uuid.UUID, payload json.RawMessage, reply func(bool, any)) {
	r := m.roomFor(participantID)
	if r == nil {
		fail(reply, "room_not_found")
		return
	}
	if r.HostID() != participantID {
		fail(reply, ErrNotHost.Error())
		return
	}
	var req configurePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		fail(reply, "invalid_payload")
		return
	}
	if err := r.Configure(req.Rounds); err != nil {
		fail(reply, err.Error())
		return
	}
	m.hub.Broadcast(r.Code, "tournament-config", map[string]any{
		"tournamentRounds": r.TournamentRounds,
		"currentRound":     r.CurrentRound,
	}, nil)
	ok(reply, nil)
}

func (m *Manager) handleStartGame(participantID uuid.UUID, reply func(bool, any)) {
	r := m.roomFor(participantID)
	if r == nil {
		fail(reply, "room_not_found")
		return
	}
	if err := r.CanStart(participantID); err != nil {
		fail(reply, err.Error())
		return
	}
	m.launchRound(r)
	ok(reply, nil)
}

func (m *Manager) launchRound(r *Room) {
	simulation, err := m.factory(r.Mode, r.simParticipants())
	if err != nil {
		m.log.Error("simulation factory failed", zap.String("room", r.Code), zap.String("mode", r.Mode), zap.Error(err))
		return
	}
	r.BeginPlaying(simulation)
	m.runtime.StartRoom(r.Code, simulation)
	m.hub.Broadcast(r.Code, "game-started", map[string]any{
		"gameMode":         r.Mode,
		"players":          r.Players(),
		"tournamentRounds": r.TournamentRounds,
		"currentRound":     r.CurrentRound,
	}, nil)
}

// handleRoundOver is registered with the Loop Runtime and implements
// the tournament round-aggregation state machine (spec §4.6). The
// champion and tie-break decision lives in internal/tournament and is
// used for every room once its final round ends, single-round rooms
// (TournamentRounds == 1) included.
func (m *Manager) handleRoundOver(roomCode string, outcome sim.Outcome) {
	m.mu.Lock()
	r, exists := m.rooms[roomCode]
	m.mu.Unlock()
	if !exists {
		return
	}

	m.runtime.StopRoom(roomCode)
	r.EnterRoundTransition()

	if outcome.WinnerID != nil {
		r.RoundWins[*outcome.WinnerID]++
		r.LastRoundWinner = *outcome.WinnerID
	}

	m.hub.Broadcast(roomCode, "round-ended", map[string]any{
		"currentRound":  r.CurrentRound,
		"roundWinner":   outcome.WinnerName,
		"roundWinnerId": uuidOrNil(outcome.WinnerID),
		"playerScores":  r.PlayerScores(),
	}, nil)

	if r.CurrentRound >= r.TournamentRounds {
		m.finishTournament(r)
		return
	}

	time.AfterFunc(config.RoundTransitionDelay, func() {
		m.mu.Lock()
		_, stillExists := m.rooms[roomCode]
		m.mu.Unlock()
		if !stillExists || r.IsEmpty() {
			return
		}
		r.mu.Lock()
		r.CurrentRound++
		nextRound := r.CurrentRound
		r.mu.Unlock()
		m.hub.Broadcast(roomCode, "round-starting", map[string]any{"round": nextRound}, nil)
		m.launchRound(r)
	})
}

func (m *Manager) finishTournament(r *Room) {
	champion := tournament.DetermineChampion(r.RoundWins, r.LastRoundWinner)
	championName := ""
	if p, ok := r.Participant(champion); ok {
		championName = p.DisplayName
	}
	r.EndTournament()
	m.hub.Broadcast(r.Code, "tournament-ended", map[string]any{
		"tournamentWinner": championName,
		"playerScores":     r.PlayerScores(),
	}, nil)
	r.ReturnToLobby()
}

func uuidOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func (m *Manager) handleInput(participantID uuid.UUID, payload json.RawMessage) {
	r := m.roomFor(participantID)
	if r == nil || r.CurrentState() != StatePlaying {
		return
	}
	var in sim.Input
	if err := json.Unmarshal(payload, &in); err != nil {
		return
	}
	m.runtime.EnqueueInput(r.Code, participantID, in)
}

func (m *Manager) handleAction(participantID uuid.UUID, kind string, payload json.RawMessage) {
	r := m.roomFor(participantID)
	if r == nil || r.CurrentState() != StatePlaying {
		return
	}
	m.runtime.EnqueueAction(r.Code, participantID, kind, payload)
}
