package lobby

import (
	"crypto/rand"

	"github.com/partyarena/arenaserver/internal/config"
)

// generateCode returns a random 4-letter room code drawn from an
// ambiguity-free uppercase-letter alphabet (spec §6). Collision retry happens in the
// caller, which holds the registry lock and can check uniqueness.
func generateCode() string {
	alphabet := config.RoomCodeAlphabet
	buf := make([]byte, config.RoomCodeLength)
	idx := make([]byte, config.RoomCodeLength)
	rand.Read(idx)

	for i := range buf {
		buf[i] = alphabet[int(idx[i])%len(alphabet)]
	}
	return string(buf)
}
