package loop

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

// recordingBroadcaster logs the order in which broadcast calls happen
// so tests can assert on sequencing, not just on whether a call
// happened.
type recordingBroadcaster struct {
	calls []string
}

func (r *recordingBroadcaster) Broadcast(_, event string, _ any, _ *uuid.UUID) {
	r.calls = append(r.calls, "event:"+event)
}

func (r *recordingBroadcaster) BroadcastCoalesced(_, event string, _ any, _ *uuid.UUID) {
	r.calls = append(r.calls, "snapshot:"+event)
}

func (r *recordingBroadcaster) BroadcastBinary(_, event string, _ []byte, _ *uuid.UUID) {
	r.calls = append(r.calls, "binary:"+event)
}

// stubSim is a minimal sim.Simulation that always emits one semantic
// event per tick, so tests can check it lands after the snapshot.
type stubSim struct {
	inputCalls  int
	actionCalls int
}

func (s *stubSim) Mode() string { return "stub" }
func (s *stubSim) ApplyInput(uuid.UUID, sim.Input) {
	s.inputCalls++
}
func (s *stubSim) QueueAction(uuid.UUID, string, json.RawMessage) {
	s.actionCalls++
}
func (s *stubSim) Tick(float64) sim.Outcome {
	return sim.Outcome{Events: []sim.Event{{Name: "stub-event", Payload: map[string]any{}}}}
}
func (s *stubSim) Snapshot() any               { return struct{}{} }
func (s *stubSim) RemoveParticipant(uuid.UUID) {}

func TestTickBroadcastsSnapshotBeforeEvents(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	runtime := New(zap.NewNop(), broadcaster, 60, 1)
	w := newRoomWorker("ABCD", &stubSim{}, runtime)

	w.tick(1.0 / 60.0)

	require.Len(t, broadcaster.calls, 2)
	assert.Equal(t, "snapshot:game-state", broadcaster.calls[0], "the snapshot of a tick must be observed before that tick's events")
	assert.Equal(t, "event:stub-event", broadcaster.calls[1])
}

func TestInputRateLimitDropsExcessMessagesWithinATick(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	runtime := New(zap.NewNop(), broadcaster, 60, 1)
	s := &stubSim{}
	w := newRoomWorker("ABCD", s, runtime)
	flooder := uuid.New()

	for i := 0; i < config.MaxInputsPerTick+10; i++ {
		w.queueAction(flooder, "punch", nil)
	}

	w.tick(1.0 / 60.0)

	assert.LessOrEqual(t, s.actionCalls, config.MaxInputsPerTick, "a flooding participant must not get more than MaxInputsPerTick actions applied in one tick")
}

func TestInputRateLimitResetsEachTick(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	runtime := New(zap.NewNop(), broadcaster, 60, 1)
	w := newRoomWorker("ABCD", &stubSim{}, runtime)
	participantID := uuid.New()

	for i := 0; i < config.MaxInputsPerTick; i++ {
		assert.False(t, w.rateLimited(participantID))
	}
	assert.True(t, w.rateLimited(participantID))

	w.tick(1.0 / 60.0)

	assert.False(t, w.rateLimited(participantID), "the counter must reset after a tick drains it")
}
