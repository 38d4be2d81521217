package session

import "fmt"

// Phase is a session lifecycle stage. Phases only move forward.
type Phase int

const (
	// PhaseCreated holds no network resources.
	PhaseCreated Phase = iota
	// PhaseHosting has a relay allocation and directory entry, runs the keep-alive and admits clients.
	PhaseHosting
	// PhaseCharacterSelect is closed to new clients; existing clients may change their selection.
	PhaseCharacterSelect
	// PhaseInGame has a frozen roster; spawning ran once on entry.
	PhaseInGame
	// PhaseTerminated is terminal.
	PhaseTerminated
)

var phaseNames = map[Phase]string{
	PhaseCreated:         "created",
	PhaseHosting:         "hosting",
	PhaseCharacterSelect: "character_select",
	PhaseInGame:          "in_game",
	PhaseTerminated:      "terminated",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
