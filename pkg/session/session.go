// Package session runs one adaptive interview per connection: opening question,
// per-answer critique and follow-up, and finalization on end.
package session

import (
	"errors"
	"fmt"
	"time"

	"interviewcoach/pkg/interview"
)

// Session errors.
var (
	ErrNoSession         = errors.New("no active interview session")
	ErrNotInProgress     = errors.New("interview is not in progress")
	ErrEmptyAnswer       = errors.New("answer is empty")
	ErrNoConnection      = errors.New("connection is not registered")
	ErrInvalidTransition = errors.New("invalid session transition")
)

// State is the lifecycle state of a session.
type State string

// Session states.
const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateCompleted  State = "COMPLETED"
)

// transitions lists the legal moves out of each state.
//
//nolint:gochecknoglobals // transition table
var transitions = map[State][]State{
	StateNotStarted: {StateInProgress},
	StateInProgress: {StateCompleted},
}

// IsValidTransition reports whether from -> to is allowed.
func IsValidTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Session is the state of one interview.
type Session struct {
	StartedAt    time.Time
	LastActive   time.Time
	Resume       *interview.ResumeContext
	ID           string
	CandidateID  string // empty for anonymous candidates
	LastQuestion string
	Type         interview.Type
	Difficulty   interview.Difficulty
	State        State
	Transcript   interview.Transcript
	Round        int
}

func (s *Session) transitionTo(to State) error {
	if !IsValidTransition(s.State, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, s.State, to)
	}
	s.State = to
	return nil
}

func (s *Session) ask(question string) {
	s.Transcript = append(s.Transcript, interview.Turn{Speaker: interview.SpeakerAI, Text: question})
	s.LastQuestion = question
}

func (s *Session) answer(text string) {
	s.Transcript = append(s.Transcript, interview.Turn{Speaker: interview.SpeakerUser, Text: text})
}

// snapshot returns a copy that shares nothing mutable with s.
func (s *Session) snapshot() Session {
	c := *s
	c.Transcript = s.Transcript.Clone()
	if s.Resume != nil {
		r := *s.Resume
		r.Skills = append([]string(nil), s.Resume.Skills...)
		c.Resume = &r
	}
	return c
}
