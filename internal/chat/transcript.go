package chat

// Transcript is an append-only, ordered conversation log. It has value
// semantics: Append returns a new Transcript and never mutates the receiver's
// backing array in place, so earlier snapshots stay valid.
type Transcript struct {
	msgs []Message
}

// NewTranscript seeds a transcript with the given messages.
func NewTranscript(msgs ...Message) Transcript {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return Transcript{msgs: out}
}

// Append returns a transcript extended with msgs.
func (t Transcript) Append(msgs ...Message) Transcript {
	out := make([]Message, 0, len(t.msgs)+len(msgs))
	out = append(out, t.msgs...)
	out = append(out, msgs...)
	return Transcript{msgs: out}
}

// Messages returns a copy of the ordered message sequence.
func (t Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of messages in the transcript.
func (t Transcript) Len() int { return len(t.msgs) }
