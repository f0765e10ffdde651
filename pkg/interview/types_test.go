package interview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeType(t *testing.T) {
	tests := map[string]Type{
		"behavioral": TypeBehavioral,
		"Technical":  TypeTechnical,
		" mixed ":    TypeMixed,
		"":           TypeMixed,
		"trivia":     TypeMixed,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeType(in), in)
	}
}

func TestNormalizeDifficulty(t *testing.T) {
	tests := map[string]Difficulty{
		"easy":   DifficultyEasy,
		"HARD":   DifficultyHard,
		"medium": DifficultyMedium,
		"insane": DifficultyMedium,
		"":       DifficultyMedium,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeDifficulty(in), in)
	}
}

func TestWantsSTAR(t *testing.T) {
	assert.True(t, TypeBehavioral.WantsSTAR())
	assert.True(t, TypeMixed.WantsSTAR())
	assert.False(t, TypeTechnical.WantsSTAR())
}

func TestTruncateSummary(t *testing.T) {
	assert.Equal(t, "short", TruncateSummary("short"))
	long := strings.Repeat("é", MaxSummaryChars+20)
	assert.Len(t, []rune(TruncateSummary(long)), MaxSummaryChars)
}

func TestTranscriptString(t *testing.T) {
	tr := Transcript{
		{Speaker: SpeakerAI, Text: "Tell me about yourself."},
		{Speaker: SpeakerUser, Text: "I build distributed systems."},
		{Speaker: SpeakerAI, Text: "Which one are you proudest of?"},
	}
	assert.Equal(t, "AI: Tell me about yourself.\nUser: I build distributed systems.\nAI: Which one are you proudest of?", tr.String())
	assert.Equal(t, "", Transcript{}.String())
}

func TestTranscriptWindow(t *testing.T) {
	tr := Transcript{
		{Speaker: SpeakerAI, Text: "q1"},
		{Speaker: SpeakerUser, Text: "a1"},
		{Speaker: SpeakerAI, Text: "q2"},
		{Speaker: SpeakerUser, Text: "a2"},
	}
	w := tr.Window(3)
	assert.Equal(t, Transcript{{SpeakerUser, "a1"}, {SpeakerAI, "q2"}, {SpeakerUser, "a2"}}, w)

	w[0].Text = "changed"
	assert.Equal(t, "a1", tr[1].Text, "window is a copy")

	assert.Len(t, tr.Window(10), 4)
	assert.Empty(t, tr.Window(0))
}

func TestTranscriptPairs(t *testing.T) {
	tr := Transcript{
		{Speaker: SpeakerAI, Text: "q1"},
		{Speaker: SpeakerUser, Text: "a1"},
		{Speaker: SpeakerAI, Text: "q2"},
		{Speaker: SpeakerUser, Text: "a2"},
		{Speaker: SpeakerAI, Text: "q3 unanswered"},
	}
	assert.Equal(t, []QA{{"q1", "a1"}, {"q2", "a2"}}, tr.Pairs())
	assert.Empty(t, Transcript{{Speaker: SpeakerAI, Text: "only"}}.Pairs())
}
