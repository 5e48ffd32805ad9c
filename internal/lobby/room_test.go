package lobby

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddParticipantFirstBecomesHost(t *testing.T) {
	r := newRoom("ABCD", "arena")
	host := uuid.New()
	p, err := r.AddParticipant(host, "Alice")
	require.NoError(t, err)
	assert.Equal(t, RoleHost, p.Role)
	assert.Equal(t, host, r.HostID())
}

func TestRemoveParticipantPromotesNewHost(t *testing.T) {
	r := newRoom("ABCD", "arena")
	host := uuid.New()
	guest := uuid.New()
	_, err := r.AddParticipant(host, "Alice")
	require.NoError(t, err)
	_, err = r.AddParticipant(guest, "Bob")
	require.NoError(t, err)

	_, newHost, empty := r.RemoveParticipant(host)
	require.NotNil(t, newHost)
	assert.False(t, empty)
	assert.Equal(t, guest, newHost.ID)
	assert.Equal(t, guest, r.HostID())
}

func TestSelectCharacterUniqueness(t *testing.T) {
	r := newRoom("ABCD", "smash")
	a := uuid.New()
	b := uuid.New()
	_, err := r.AddParticipant(a, "Alice")
	require.NoError(t, err)
	_, err = r.AddParticipant(b, "Bob")
	require.NoError(t, err)

	require.NoError(t, r.SelectCharacter(a, "knight"))
	assert.ErrorIs(t, r.SelectCharacter(b, "knight"), ErrCharacterTaken)

	// Re-selecting releases the old slot for someone else.
	require.NoError(t, r.SelectCharacter(a, "archer"))
	require.NoError(t, r.SelectCharacter(b, "knight"))
}

func TestRoomFullRejectsJoin(t *testing.T) {
	r := newRoom("ABCD", "arena")
	for i := 0; i < roomCapacity(r); i++ {
		_, err := r.AddParticipant(uuid.New(), "p")
		require.NoError(t, err)
	}
	_, err := r.AddParticipant(uuid.New(), "overflow")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func roomCapacity(r *Room) int {
	return r.capacity()
}
