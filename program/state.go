package program

// State is the link state of a Program.
type State uint8

const (
	// Unlinked programs have never been linked.
	Unlinked State = iota
	// CheckingCache is set while Link looks for a cached binary.
	CheckingCache
	// Linking is set while the linker runs.
	Linking
	// LinkPending means the front end finished and the backend may still
	// be building the program.
	LinkPending
	// Linked programs have a published Executable from the last link.
	Linked
	// Failed means the last link or binary load failed.
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unlinked:
		return "unlinked"
	case CheckingCache:
		return "checking-cache"
	case Linking:
		return "linking"
	case LinkPending:
		return "link-pending"
	case Linked:
		return "linked"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
