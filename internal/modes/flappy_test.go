package modes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyarena/arenaserver/internal/sim"
)

func newFlappyParticipants(n int) []sim.Participant {
	participants := make([]sim.Participant, n)
	for i := range participants {
		participants[i] = sim.Participant{ID: uuid.New(), Name: "bird", Number: i + 1}
	}
	return participants
}

func TestFlappyTapImpartsUpwardImpulse(t *testing.T) {
	participants := newFlappyParticipants(1)
	simulation, err := NewFlappy("flappy", participants)
	require.NoError(t, err)
	f := simulation.(*Flappy)
	id := participants[0].ID

	f.QueueAction(id, "flappy-tap", nil)

	assert.Less(t, f.birds[id].vy, 0.0)
}

func TestFlappyOutOfBoundsEliminates(t *testing.T) {
	participants := newFlappyParticipants(2)
	simulation, err := NewFlappy("flappy", participants)
	require.NoError(t, err)
	f := simulation.(*Flappy)
	f.birds[participants[0].ID].y = 1000

	outcome := f.Tick(1.0 / 60.0)

	assert.False(t, f.birds[participants[0].ID].alive)
	found := false
	for _, ev := range outcome.Events {
		if ev.Name == "flappy-elimination" {
			found = true
		}
	}
	assert.True(t, found)
	assert.True(t, outcome.RoundOver)
}
