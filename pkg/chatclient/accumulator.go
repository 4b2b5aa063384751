package chatclient

// Accumulator folds a stream of fragments into an ordered list of turns.
//
// At most one turn is open at any time; it is always the last turn and always has the assistant role.
// Accumulator is not safe for concurrent use; the Binding serializes access to it.
type Accumulator struct {
	turns         []Turn
	awaitingReply bool
}

func NewAccumulator() *Accumulator {
	return &Accumulator{turns: []Turn{}}
}

// Seed replaces the turns with hydrated history. Seeded turns are closed and kept verbatim.
func (a *Accumulator) Seed(history []Turn) {
	a.turns = make([]Turn, 0, len(history))
	for _, t := range history {
		t.Open = false
		a.turns = append(a.turns, t)
	}
	a.awaitingReply = false
}

// Append extends the open assistant turn with fragment, or starts a new open assistant turn.
// Fragments are concatenated as-is: no separator, no trimming, no deduplication.
func (a *Accumulator) Append(fragment string) {
	if n := len(a.turns); n > 0 && a.turns[n-1].Open && a.turns[n-1].Role == RoleAssistant {
		a.turns[n-1].Content += fragment
	} else {
		a.turns = append(a.turns, Turn{Role: RoleAssistant, Content: fragment, Open: true})
	}
	a.awaitingReply = false
}

// AppendUserTurn closes any open turn, appends a user turn and starts waiting for a reply.
func (a *Accumulator) AppendUserTurn(text string) {
	a.CloseOpenTurn()
	a.turns = append(a.turns, Turn{Role: RoleUser, Content: text})
	a.awaitingReply = true
}

// CloseOpenTurn makes the open turn, if any, ineligible for further fragments.
func (a *Accumulator) CloseOpenTurn() {
	if n := len(a.turns); n > 0 {
		a.turns[n-1].Open = false
	}
}

// Interrupt is called when the link goes away: the open turn is closed and no reply is expected anymore.
func (a *Accumulator) Interrupt() {
	a.CloseOpenTurn()
	a.awaitingReply = false
}

func (a *Accumulator) AwaitingReply() bool {
	return a.awaitingReply
}

// OpenTurn returns the turn currently receiving fragments.
func (a *Accumulator) OpenTurn() (Turn, bool) {
	if n := len(a.turns); n > 0 && a.turns[n-1].Open {
		return a.turns[n-1], true
	}
	return Turn{}, false
}

func (a *Accumulator) Len() int {
	return len(a.turns)
}

// Turns returns a copy of the turn sequence.
func (a *Accumulator) Turns() []Turn {
	return cloneTurns(a.turns)
}
