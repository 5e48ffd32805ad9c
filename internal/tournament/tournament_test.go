package tournament

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDetermineChampionOutrightWinner(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	wins := map[uuid.UUID]int{a: 2, b: 1}
	assert.Equal(t, a, DetermineChampion(wins, b))
}

func TestDetermineChampionTieBrokenByLastRoundWinner(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	wins := map[uuid.UUID]int{a: 2, b: 2}
	assert.Equal(t, b, DetermineChampion(wins, b))
	assert.Equal(t, a, DetermineChampion(wins, a))
}

func TestStandingsSortedByWinsDescending(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	wins := map[uuid.UUID]int{a: 1, b: 3}
	standings := Standings(wins)
	assert.Equal(t, b.String(), standings[0].ParticipantID)
	assert.Equal(t, 3, standings[0].Wins)
}
