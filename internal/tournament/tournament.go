// Package tournament holds the pure decision logic for the
// cross-mode Tournament Controller (spec §4.6): it never touches a
// room's transport or simulation, it only resolves what a sequence of
// round outcomes means for the overall standings. internal/lobby owns
// the round-transition scheduling and wiring since it already holds
// the Room and Loop Runtime references; this package stays a leaf so
// lobby can depend on it without a cycle.
package tournament

import "github.com/google/uuid"

// DetermineChampion resolves spec §9's open question on tournament
// ties: whoever has the most round wins takes the tournament title.
// When two or more players are tied for the most wins, the winner of
// the most recently completed round breaks the tie — this keeps a
// deciding final round meaningful even in a long tournament where an
// early leader never lost again.
func DetermineChampion(roundWins map[uuid.UUID]int, lastRoundWinner uuid.UUID) uuid.UUID {
	best := -1
	var tied []uuid.UUID
	for id, wins := range roundWins {
		switch {
		case wins > best:
			best = wins
			tied = []uuid.UUID{id}
		case wins == best:
			tied = append(tied, id)
		}
	}

	if len(tied) == 1 {
		return tied[0]
	}
	for _, id := range tied {
		if id == lastRoundWinner {
			return id
		}
	}
	if len(tied) > 0 {
		return tied[0]
	}
	return uuid.Nil
}

// Standing is one participant's tournament-wide tally.
type Standing struct {
	ParticipantID string `json:"participantId"`
	Wins          int    `json:"wins"`
}

// Standings converts a round-wins tally into a sorted leaderboard,
// highest wins first, ties broken by participant id for a stable
// ordering across broadcasts.
func Standings(roundWins map[uuid.UUID]int) []Standing {
	out := make([]Standing, 0, len(roundWins))
	for id, wins := range roundWins {
		out = append(out, Standing{ParticipantID: id.String(), Wins: wins})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && (out[j].Wins > out[j-1].Wins ||
			(out[j].Wins == out[j-1].Wins && out[j].ParticipantID < out[j-1].ParticipantID)); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
