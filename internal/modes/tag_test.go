package modes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyarena/arenaserver/internal/sim"
)

func TestTagHandoffGrantsImmunity(t *testing.T) {
	a := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	b := sim.Participant{ID: uuid.New(), Name: "b", Number: 2}
	simulation, err := NewTag("tag", []sim.Participant{a, b})
	require.NoError(t, err)
	tg := simulation.(*Tag)
	tg.itID = a.ID
	tg.players[a.ID].x, tg.players[a.ID].y = 0, 0
	tg.players[b.ID].x, tg.players[b.ID].y = 5, 0

	outcome := tg.Tick(1.0 / 60.0)

	assert.Equal(t, b.ID, tg.itID, "tag handoff must move \"it\" to the tagged player")
	assert.Greater(t, tg.players[b.ID].immunity, 0.0)
	found := false
	for _, ev := range outcome.Events {
		if ev.Name == "tag-tagged" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTagImmunityBlocksImmediateBounceback(t *testing.T) {
	a := sim.Participant{ID: uuid.New(), Name: "a", Number: 1}
	b := sim.Participant{ID: uuid.New(), Name: "b", Number: 2}
	simulation, err := NewTag("tag", []sim.Participant{a, b})
	require.NoError(t, err)
	tg := simulation.(*Tag)
	tg.itID = a.ID
	tg.players[b.ID].immunity = 1.0
	tg.players[a.ID].x, tg.players[a.ID].y = 0, 0
	tg.players[b.ID].x, tg.players[b.ID].y = 5, 0

	tg.Tick(1.0 / 60.0)

	assert.Equal(t, a.ID, tg.itID, "an immune player cannot be tagged")
}
