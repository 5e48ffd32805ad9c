package arena

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyarena/arenaserver/internal/sim"
)

func newTestSim(t *testing.T, n int) (*Simulation, []uuid.UUID) {
	t.Helper()
	ids := make([]uuid.UUID, n)
	participants := make([]sim.Participant, n)
	for i := range participants {
		ids[i] = uuid.New()
		participants[i] = sim.Participant{ID: ids[i], Name: "fighter", Number: i + 1}
	}
	simulation, err := New("arena", participants)
	require.NoError(t, err)
	return simulation.(*Simulation), ids
}

func TestSingleStrikeSingleHit(t *testing.T) {
	s, ids := newTestSim(t, 2)
	a, b := s.fighters[ids[0]], s.fighters[ids[1]]

	// Put the fighters adjacent and facing each other.
	a.x, a.y = 0, 0
	b.x, b.y = 40, 0
	a.facingX, a.facingY = 1, 0
	b.facingX, b.facingY = -1, 0

	s.QueueAction(ids[0], "punch", nil)

	startHealth := b.health
	totalHits := 0
	for i := 0; i < 30; i++ {
		outcome := s.Tick(1.0 / 60.0)
		for _, ev := range outcome.Events {
			if ev.Name == "arena-attack-hit" {
				totalHits++
			}
		}
	}

	assert.Equal(t, 1, totalHits, "a single swing must connect at most once")
	assert.Greater(t, b.health, startHealth)
}

func TestRingOutEliminates(t *testing.T) {
	s, ids := newTestSim(t, 2)
	f := s.fighters[ids[0]]
	f.x, f.y = 10000, 0

	outcome := s.Tick(1.0 / 60.0)

	assert.Equal(t, "eliminated", string(f.state))
	found := false
	for _, ev := range outcome.Events {
		if ev.Name == "arena-elimination" {
			found = true
		}
	}
	assert.True(t, found)
	assert.True(t, outcome.RoundOver)
	require.NotNil(t, outcome.WinnerID)
	assert.Equal(t, ids[1], *outcome.WinnerID)
}

func TestGrabIsMutuallyExclusive(t *testing.T) {
	s, ids := newTestSim(t, 3)
	a, b, c := s.fighters[ids[0]], s.fighters[ids[1]], s.fighters[ids[2]]
	a.x, a.y = 0, 0
	b.x, b.y = 30, 0
	c.x, c.y = 30, 0
	a.facingX, a.facingY = 1, 0

	s.QueueAction(ids[0], "grab", mustJSON(t, actionPayload{TargetID: ids[1].String()}))
	s.Tick(1.0 / 60.0)
	assert.Equal(t, stateGrabbing, a.state)
	assert.Equal(t, stateGrabbed, b.state)

	// A second grab attempt on the already-grabbed target must fail.
	s.QueueAction(ids[2], "grab", mustJSON(t, actionPayload{TargetID: ids[1].String()}))
	s.Tick(1.0 / 60.0)
	assert.Equal(t, stateIdle, c.state)
	assert.Equal(t, ids[0], b.grabTarget)
}

func mustJSON(t *testing.T, v actionPayload) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
