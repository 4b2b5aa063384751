package chatclient

// Role tags a turn with its author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
//
// Open marks the single assistant turn that may still receive streamed fragments.
// It is client-side bookkeeping only and is never part of a history payload.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
	Open    bool   `json:"-" yaml:"-"`
}

// Status is the connectivity of a Connection, and by extension of the active session.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// State is an immutable snapshot of the active conversation.
type State struct {
	SessionID     string
	Turns         []Turn
	Connectivity  Status
	AwaitingReply bool
	// Version increases with every mutation of the binding and orders snapshots.
	Version uint64
}

// LastTurn returns the most recent turn, if any.
func (s State) LastTurn() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

func cloneTurns(turns []Turn) []Turn {
	if len(turns) == 0 {
		return []Turn{}
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
