package transcript

import (
	"iter"
	"slices"
)

// Sink receives every recorded append. all is the full transcript including newest.
type Sink interface {
	Record(all []Message, newest Message) error
}

// Transcript is the ordered message history of one session. It is the only state
// consulted when building a completion request. Not safe for concurrent use.
type Transcript struct {
	messages []Message
	sink     Sink
}

func New(sink Sink) *Transcript {
	return &Transcript{sink: sink}
}

// Append adds a message to the end and hands the result to the sink. A sink error is
// returned with the new length; the message stays appended either way.
func (t *Transcript) Append(role Role, content string) (int, error) {
	n := t.AppendQuiet(role, content)
	if t.sink == nil {
		return n, nil
	}
	return n, t.sink.Record(t.Messages(), t.messages[n-1])
}

// AppendQuiet appends without notifying the sink.
func (t *Transcript) AppendQuiet(role Role, content string) int {
	t.messages = append(t.messages, Message{Role: role, Content: content})
	return len(t.messages)
}

// Clear drops the in-memory history. Files already written by the sink are left alone.
func (t *Transcript) Clear() {
	t.messages = nil
}

// Replace swaps the whole history for msgs. Nothing changes if any entry lacks a role.
func (t *Transcript) Replace(msgs []Message) error {
	for i, m := range msgs {
		if m.Role == "" {
			return &FormatError{Index: i, Reason: "missing role"}
		}
	}
	t.messages = slices.Clone(msgs)
	return nil
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

// Messages returns a copy of the history in insertion order.
func (t *Transcript) Messages() []Message {
	return slices.Clone(t.messages)
}

// Render yields one Line per message. The sequence reads the live history each time it
// is ranged over, so it can be iterated again after further appends.
func (t *Transcript) Render() iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for _, m := range t.messages {
			if !yield(Line{Prefix: DisplayName(m.Role), Content: m.Content}) {
				return
			}
		}
	}
}
