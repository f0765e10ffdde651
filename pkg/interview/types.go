// Package interview holds the interview domain types and the three generators that
// turn session context into invoker requests: next question, answer critique and
// final report.
package interview

import (
	"context"
	"strings"

	"interviewcoach/pkg/invoker"
)

// Invoker is the subset of *invoker.Invoker the generators need.
type Invoker interface {
	Invoke(ctx context.Context, req invoker.Request) invoker.Result
}

// Type is the interview focus.
type Type string

// Interview types.
const (
	TypeBehavioral Type = "behavioral"
	TypeTechnical  Type = "technical"
	TypeMixed      Type = "mixed"
)

// NormalizeType maps unknown or empty values to TypeMixed.
func NormalizeType(s string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeBehavioral, TypeTechnical, TypeMixed:
		return t
	default:
		return TypeMixed
	}
}

// WantsSTAR reports whether answers are evaluated against the STAR method.
func (t Type) WantsSTAR() bool {
	return t == TypeBehavioral || t == TypeMixed
}

// Difficulty is the requested question difficulty.
type Difficulty string

// Difficulty levels.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// NormalizeDifficulty maps unknown or empty values to DifficultyMedium.
func NormalizeDifficulty(s string) Difficulty {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	default:
		return DifficultyMedium
	}
}

// Stage selects the next-question prompt.
type Stage string

// Question stages.
const (
	StageStart    Stage = "start"
	StageContinue Stage = "continue"
)

// ResumeContext is the candidate profile snapshot captured at session start.
type ResumeContext struct {
	Field   string   `json:"field"`
	Level   string   `json:"level"`
	Summary string   `json:"summary"`
	Skills  []string `json:"skills"`
}

// MaxSummaryChars bounds ResumeContext.Summary.
const MaxSummaryChars = 500

// TruncateSummary cuts s to MaxSummaryChars runes.
func TruncateSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxSummaryChars {
		return s
	}
	return string(runes[:MaxSummaryChars])
}
