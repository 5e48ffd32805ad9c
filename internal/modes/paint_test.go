package modes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyarena/arenaserver/internal/config"
	"github.com/partyarena/arenaserver/internal/sim"
)

func TestPaintWalkingClaimsCell(t *testing.T) {
	a := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	b := sim.Participant{ID: uuid.New(), Name: "b", Number: 2}
	simulation, err := NewPaint("paint", []sim.Participant{a, b})
	require.NoError(t, err)
	p := simulation.(*Paint)
	p.players[a.ID].x, p.players[a.ID].y = 10, 10

	outcome := p.Tick(1.0 / 60.0)

	idx, ok := p.cellIndex(p.players[a.ID].x, p.players[a.ID].y)
	require.True(t, ok)
	assert.Equal(t, p.players[a.ID].owner, p.grid[idx])
	found := false
	for _, ev := range outcome.Events {
		if ev.Name == "paint-grid" {
			found = true
			if payload, ok := ev.Payload.([]byte); ok {
				assert.Len(t, payload, config.PaintGridSize*config.PaintGridSize)
			}
		}
	}
	assert.True(t, found, "paint-grid binary frame must be emitted every tick")
}

func TestPaintRoundEndsWithHighestShareWinning(t *testing.T) {
	a := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	b := sim.Participant{ID: uuid.New(), Name: "b", Number: 2}
	simulation, err := NewPaint("paint", []sim.Participant{a, b})
	require.NoError(t, err)
	p := simulation.(*Paint)
	for i := range p.grid {
		p.grid[i] = p.players[a.ID].owner
	}
	p.elapsed = paintRoundSeconds

	outcome := p.Tick(1.0 / 60.0)

	require.True(t, outcome.RoundOver)
	require.NotNil(t, outcome.WinnerID)
	assert.Equal(t, a.ID, *outcome.WinnerID)
}
