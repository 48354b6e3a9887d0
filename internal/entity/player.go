package entity

// PlayerSlot is one of a session's two seats. It survives disconnects:
// the slot keeps its name so a returning player can reclaim the mark,
// while connection liveness is tracked by the session, never here.
type PlayerSlot struct {
	Name string `json:"name"`
	Mark string `json:"mark"`
}
