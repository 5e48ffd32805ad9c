package modes

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyarena/arenaserver/internal/sim"
)

func newRaceParticipants(n int) ([]sim.Participant, []uuid.UUID) {
	ids := make([]uuid.UUID, n)
	participants := make([]sim.Participant, n)
	for i := range participants {
		ids[i] = uuid.New()
		participants[i] = sim.Participant{ID: ids[i], Name: "racer", Number: i + 1}
	}
	return participants, ids
}

func tapPayload(t *testing.T, side string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(raceTapPayload{Side: side})
	require.NoError(t, err)
	return b
}

func TestRaceWaitsForCountdown(t *testing.T) {
	participants, ids := newRaceParticipants(2)
	simulation, err := NewRace("race", participants)
	require.NoError(t, err)
	r := simulation.(*Race)

	// A tap before the countdown finishes must be ignored.
	r.QueueAction(ids[0], "race-tap", tapPayload(t, "left"))
	r.Tick(1.0 / 60.0)
	assert.Equal(t, 0.0, r.racers[ids[0]].speed)
}

func TestRaceAlternatingTapsBeatSameSideSpam(t *testing.T) {
	participants, ids := newRaceParticipants(2)
	simulation, err := NewRace("race", participants)
	require.NoError(t, err)
	r := simulation.(*Race)
	r.started = true

	r.QueueAction(ids[0], "race-tap", tapPayload(t, "left"))
	r.QueueAction(ids[1], "race-tap", tapPayload(t, "left"))
	r.QueueAction(ids[1], "race-tap", tapPayload(t, "left"))

	assert.Greater(t, r.racers[ids[0]].speed, 0.0)
	assert.Less(t, r.racers[ids[1]].speed, r.racers[ids[0]].speed*2, "same-side repeats must be penalized")
}

func TestRaceFinishEmitsWinnerWithRanking(t *testing.T) {
	participants, ids := newRaceParticipants(2)
	simulation, err := NewRace("race", participants)
	require.NoError(t, err)
	r := simulation.(*Race)
	r.started = true
	r.racers[ids[0]].distance = 999999
	r.racers[ids[1]].distance = 999999

	outcome := r.Tick(1.0 / 60.0)

	assert.True(t, outcome.RoundOver)
	require.NotNil(t, outcome.WinnerID)
	found := false
	for _, ev := range outcome.Events {
		if ev.Name == "race-winner" {
			found = true
		}
	}
	assert.True(t, found)
}
