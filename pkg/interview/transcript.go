package interview

import "strings"

// Speaker identifies who produced a turn.
type Speaker string

// Speakers.
const (
	SpeakerAI   Speaker = "AI"
	SpeakerUser Speaker = "User"
)

// Turn is one transcript entry.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// String renders "AI: <text>" or "User: <text>".
func (t Turn) String() string {
	return string(t.Speaker) + ": " + t.Text
}

// Transcript is the ordered list of turns of one interview.
type Transcript []Turn

// String joins rendered turns with newlines. This is the persisted form.
func (t Transcript) String() string {
	lines := make([]string, len(t))
	for i := range t {
		lines[i] = t[i].String()
	}
	return strings.Join(lines, "\n")
}

// Window returns a copy of the last n turns.
func (t Transcript) Window(n int) Transcript {
	if n <= 0 {
		return Transcript{}
	}
	start := len(t) - n
	if start < 0 {
		start = 0
	}
	out := make(Transcript, len(t)-start)
	copy(out, t[start:])
	return out
}

// Clone returns an independent copy.
func (t Transcript) Clone() Transcript {
	return t.Window(len(t))
}

// QA is a question followed by the candidate's answer.
type QA struct {
	Question string
	Answer   string
}

// Pairs returns every AI turn immediately followed by a User turn.
func (t Transcript) Pairs() []QA {
	var pairs []QA
	for i := 0; i+1 < len(t); i++ {
		if t[i].Speaker == SpeakerAI && t[i+1].Speaker == SpeakerUser {
			pairs = append(pairs, QA{Question: t[i].Text, Answer: t[i+1].Text})
			i++
		}
	}
	return pairs
}
