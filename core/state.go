package core

// State is the lifecycle state of a Document.
type State int

const (
	// Detached documents exist only in memory and have no identity.
	Detached State = iota
	// Attached documents have an identity but their data is not loaded.
	Attached
	// Loaded documents have their data cached locally.
	Loaded
	// Deleted documents were removed and cannot be used anymore.
	Deleted
)

func (s State) String() string {
	switch s {
	case Detached:
		return "DETACHED"
	case Attached:
		return "ATTACHED"
	case Loaded:
		return "LOADED"
	case Deleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}
