package bridge

// state tracks the handle's position in the fixed lifecycle
// create → init → open → nextBlock* → close. Failed is terminal for
// reads; close is still attempted once from Failed.
type state int

const (
	stateConstructed state = iota
	stateInitialized
	stateOpened
	stateClosed
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateConstructed:
		return "constructed"
	case stateInitialized:
		return "initialized"
	case stateOpened:
		return "opened"
	case stateClosed:
		return "closed"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}
