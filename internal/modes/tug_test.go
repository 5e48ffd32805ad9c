package modes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

func TestTugPerfectPullMovesRopeTowardPuller(t *testing.T) {
	a := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	b := sim.Participant{ID: uuid.New(), Name: "b", Number: 2}
	simulation, err := NewTug("tug", []sim.Participant{a, b})
	require.NoError(t, err)
	tg := simulation.(*Tug)
	tg.sincePulse = 0

	tg.QueueAction(a.ID, "tug-pull", nil)

	assert.Greater(t, tg.ropePos, 0.0)
}

func TestTugOffPulsePullCostsStaminaAsMiss(t *testing.T) {
	a := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	b := sim.Participant{ID: uuid.New(), Name: "b", Number: 2}
	simulation, err := NewTug("tug", []sim.Participant{a, b})
	require.NoError(t, err)
	tg := simulation.(*Tug)
	tg.sincePulse = config.TugGoodWindow.Seconds() + 1

	tg.QueueAction(a.ID, "tug-pull", nil)

	assert.Equal(t, 0.0, tg.ropePos)
	assert.Less(t, tg.players[a.ID].stamina, config.MaxStamina)
}

func TestTugTimeoutPicksLeadingSide(t *testing.T) {
	a := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	b := sim.Participant{ID: uuid.New(), Name: "b", Number: 2}
	simulation, err := NewTug("tug", []sim.Participant{a, b})
	require.NoError(t, err)
	tg := simulation.(*Tug)
	tg.ropePos = config.TugVictoryOffset / 2
	tg.elapsed = tugRoundSeconds

	outcome := tg.Tick(1.0 / 60.0)

	assert.True(t, outcome.RoundOver, "a round that never crosses the victory offset must still end at timeout")
	require.NotNil(t, outcome.WinnerID)
	assert.Equal(t, a.ID, *outcome.WinnerID)
}

func TestTugVictoryAtThreshold(t *testing.T) {
	a := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	b := sim.Participant{ID: uuid.New(), Name: "b", Number: 2}
	simulation, err := NewTug("tug", []sim.Participant{a, b})
	require.NoError(t, err)
	tg := simulation.(*Tug)
	tg.ropePos = config.TugVictoryOffset

	outcome := tg.Tick(1.0 / 60.0)

	assert.True(t, outcome.RoundOver)
	require.NotNil(t, outcome.WinnerID)
	assert.Equal(t, a.ID, *outcome.WinnerID)
}
