package smash

import (
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
		participants[i] = sim.Participant{ID: ids[i], Name: "brawler", Number: i + 1}
	}
	simulation, err := New("smash", participants)
	require.NoError(t, err)
	return simulation.(*Simulation), ids
}

func TestKnockbackScalesWithPercent(t *testing.T) {
	s, ids := newTestSim(t, 2)
	a, b := s.fighters[ids[0]], s.fighters[ids[1]]
	a.x, a.y, a.facing = 0, 0, 1
	b.x, b.y = 50, 0

	s.launch(a, b)
	lowPercentKnockback := b.vy

	b.percent = 120
	s.launch(a, b)
	highPercentKnockback := b.vy

	assert.Less(t, highPercentKnockback, lowPercentKnockback, "knockback must grow with accumulated percent")
}

func TestStockLossRespawnsUntilOut(t *testing.T) {
	s, ids := newTestSim(t, 2)
	f := s.fighters[ids[0]]
	f.stocks = 1
	f.x = 5000

	s.checkKillPlanes()

	assert.Equal(t, 0, f.stocks)
	assert.Equal(t, stateOut, f.state)
}
