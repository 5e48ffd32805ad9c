package lobby

import "github.com/google/uuid"

// Role distinguishes the room creator from everyone else (spec §3).
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Participant is a connected client holding one controller slot in a
// room (spec §3 "Participant"). Number is assigned once at join time
// and never changes for the life of the room, even if the holder
// becomes host.
type Participant struct {
	ID          uuid.UUID
	DisplayName string
	Number      int
	Color       string
	Ready       bool
	Character   string
	Role        Role
}

// colorPalette assigns a stable accent color by join order, cycling if
// the room somehow exceeds the palette length.
var colorPalette = []string{
	"#ef4444", "#3b82f6", "#22c55e", "#eab308",
	"#f472b6", "#8b5cf6", "#06b6d4", "#f97316",
}

func colorFor(number int) string {
	return colorPalette[(number-1)%len(colorPalette)]
}
