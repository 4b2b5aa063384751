package chatclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorConcatenatesFragments(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
	}{
		{name: "single", fragments: []string{"Hello"}},
		{name: "split word", fragments: []string{"He", "llo"}},
		{name: "whitespace kept", fragments: []string{" Hello", " ", "world \n"}},
		{name: "repeated fragments", fragments: []string{"ha", "ha", "ha"}},
		{name: "empty fragments", fragments: []string{"", "a", "", "b", ""}},
		{name: "multibyte split", fragments: []string{"caf", "é ", "☕"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAccumulator()
			a.AppendUserTurn("q")
			for _, f := range tt.fragments {
				a.Append(f)
			}
			turns := a.Turns()
			require.Len(t, turns, 2)
			assert.Equal(t, RoleAssistant, turns[1].Role)
			assert.Equal(t, strings.Join(tt.fragments, ""), turns[1].Content)
			assert.True(t, turns[1].Open)
		})
	}
}

func TestAccumulatorTwoFragmentsMakeOneTurn(t *testing.T) {
	a := NewAccumulator()
	a.Append("A")
	a.Append("B")

	require.Equal(t, []Turn{{Role: RoleAssistant, Content: "AB", Open: true}}, a.Turns())
}

func TestAccumulatorUserTurnClosesOpenTurn(t *testing.T) {
	for _, awaiting := range []bool{true, false} {
		a := NewAccumulator()
		a.AppendUserTurn("first")
		if !awaiting {
			a.Append("reply")
		}
		require.Equal(t, awaiting, a.AwaitingReply())

		before := a.Len()
		a.AppendUserTurn("second")
		require.Equal(t, before+1, a.Len())

		turns := a.Turns()
		last := turns[len(turns)-1]
		assert.Equal(t, Turn{Role: RoleUser, Content: "second"}, last)
		for _, tr := range turns {
			assert.False(t, tr.Open)
		}
		_, open := a.OpenTurn()
		assert.False(t, open)
		assert.True(t, a.AwaitingReply())
	}
}

func TestAccumulatorFirstFragmentClearsAwaitingReply(t *testing.T) {
	a := NewAccumulator()
	a.AppendUserTurn("hi")
	require.True(t, a.AwaitingReply())

	a.Append("")
	require.False(t, a.AwaitingReply())
}

func TestAccumulatorFragmentAfterCloseStartsNewTurn(t *testing.T) {
	a := NewAccumulator()
	a.Append("one")
	a.CloseOpenTurn()
	a.Append("two")

	require.Equal(t, []Turn{
		{Role: RoleAssistant, Content: "one"},
		{Role: RoleAssistant, Content: "two", Open: true},
	}, a.Turns())
}

func TestAccumulatorInterrupt(t *testing.T) {
	a := NewAccumulator()
	a.AppendUserTurn("hi")
	a.Append("partial")
	a.AppendUserTurn("again")
	a.Interrupt()

	assert.False(t, a.AwaitingReply())
	_, open := a.OpenTurn()
	assert.False(t, open)
	assert.Equal(t, 3, a.Len())
}

func TestAccumulatorSeedKeepsHistoryVerbatim(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello", Open: true},
		{Role: "system", Content: "kept as-is"},
	}
	a := NewAccumulator()
	a.AppendUserTurn("discarded")
	a.Seed(history)

	turns := a.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, Turn{Role: RoleUser, Content: "hi"}, turns[0])
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "hello"}, turns[1])
	assert.Equal(t, Role("system"), turns[2].Role)
	assert.False(t, a.AwaitingReply())

	// history ending with an assistant turn is closed: the next fragment starts a new turn
	a.Append("x")
	assert.Equal(t, 4, a.Len())
}

func TestAccumulatorTurnsReturnsCopy(t *testing.T) {
	a := NewAccumulator()
	a.Append("abc")
	turns := a.Turns()
	turns[0].Content = "mutated"

	require.Equal(t, "abc", a.Turns()[0].Content)
}
