package session

// ConnState represents the connection state of a session's link.
//
// The state is always derived from the protocol client's liveness flag; the
// session never stores a second copy that could diverge from the adapter.
type ConnState uint32

const (
	// Disconnected indicates that the physical link is not established.
	Disconnected ConnState = iota
	// Connected indicates that the physical link is established and register
	// operations can be issued.
	Connected
)

// IsConnected returns true if the state is Connected.
func (cs ConnState) IsConnected() bool { return cs == Connected }

// String returns the string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}
