package modes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

func TestBalloonInflateRespectsCooldown(t *testing.T) {
	p := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	simulation, err := NewBalloon("balloon", []sim.Participant{p})
	require.NoError(t, err)
	b := simulation.(*Balloon)

	b.QueueAction(p.ID, "balloon-inflate", nil)
	b.QueueAction(p.ID, "balloon-inflate", nil)

	assert.Equal(t, config.BalloonInflateAmount, b.players[p.ID].size)
}

func TestBalloonTimeoutPicksMaxSizeNonDQPlayer(t *testing.T) {
	a := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	bp := sim.Participant{ID: uuid.New(), Name: "b", Number: 2}
	simulation, err := NewBalloon("balloon", []sim.Participant{a, bp})
	require.NoError(t, err)
	bal := simulation.(*Balloon)
	bal.players[a.ID].size = 5
	bal.players[bp.ID].size = 2
	bal.elapsed = balloonRoundSeconds

	outcome := bal.Tick(1.0 / 60.0)

	assert.True(t, outcome.RoundOver, "a round with nobody bursting must still end at timeout")
	require.NotNil(t, outcome.WinnerID)
	assert.Equal(t, a.ID, *outcome.WinnerID)
}

func TestBalloonBurstEliminatesAndEndsRound(t *testing.T) {
	a := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	bp := sim.Participant{ID: uuid.New(), Name: "b", Number: 2}
	simulation, err := NewBalloon("balloon", []sim.Participant{a, bp})
	require.NoError(t, err)
	bal := simulation.(*Balloon)
	// Passive deflation runs before the burst check within a tick, so
	// start a full unit past the threshold.
	bal.players[a.ID].size = bal.players[a.ID].burstAt + 1

	outcome := bal.Tick(1.0 / 60.0)

	assert.True(t, bal.players[a.ID].popped)
	assert.True(t, outcome.RoundOver)
	require.NotNil(t, outcome.WinnerID)
	assert.Equal(t, bp.ID, *outcome.WinnerID)
}
