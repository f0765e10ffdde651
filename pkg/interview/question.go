package interview

import (
	"context"

	"interviewcoach/pkg/invoker"
	"interviewcoach/pkg/logx"
)

// Fallback questions used when the invoker fails.
const (
	DefaultOpeningQuestion = "Tell me about yourself."
	DefaultRetryQuestion   = "I'm sorry, I had an issue generating the next question. Let's try again."
)

//nolint:gochecknoglobals // package logger
var logger = logx.NewLogger("interview")

// PurposeQuestion labels next-question calls in metrics.
const PurposeQuestion = "question"

// QuestionInput is everything the next-question generator looks at.
type QuestionInput struct {
	Resume         *ResumeContext
	PreviousAnswer string
	Stage          Stage
	Type           Type
	Difficulty     Difficulty
	Window         Transcript // recent turns, oldest first
	Round          int
}

type questionData struct {
	Resume             *ResumeContext
	Type               Type
	Difficulty         Difficulty
	TypeGuidance       string
	DifficultyGuidance string
	RoundHint          string
	PreviousAnswer     string
	Window             Transcript
	Round              int
}

// BuildQuestionRequest renders the next-question request.
func (c *Catalog) BuildQuestionRequest(in QuestionInput) (invoker.Request, error) {
	data := questionData{
		Resume:             in.Resume,
		Type:               in.Type,
		Difficulty:         in.Difficulty,
		TypeGuidance:       c.TypeGuidance[in.Type],
		DifficultyGuidance: c.DifficultyGuidance[in.Difficulty],
		RoundHint:          c.RoundHint(in.Round),
		PreviousAnswer:     in.PreviousAnswer,
		Window:             in.Window,
		Round:              in.Round,
	}

	name := QuestionContinueTemplate
	if in.Stage == StageStart {
		name = QuestionStartTemplate
	}
	prompt, err := c.Render(name, data)
	if err != nil {
		return invoker.Request{}, err
	}
	return invoker.Request{
		Prompt:  prompt,
		System:  c.System,
		Purpose: PurposeQuestion,
		Shape:   invoker.Text(),
	}, nil
}

// NextQuestion returns the next interviewer utterance. It never fails: on any
// error the stage's default question is returned.
func NextQuestion(ctx context.Context, inv Invoker, in QuestionInput) string {
	fallback := DefaultRetryQuestion
	if in.Stage == StageStart {
		fallback = DefaultOpeningQuestion
	}

	catalog, err := DefaultCatalog()
	if err != nil {
		logger.Error("Prompt catalog unavailable: %v", err)
		return fallback
	}
	req, err := catalog.BuildQuestionRequest(in)
	if err != nil {
		logger.Error("Failed to build question prompt: %v", err)
		return fallback
	}

	res := inv.Invoke(ctx, req)
	if !res.Ok() || res.Text == "" {
		logger.Warn("Next question unavailable (%s); using default", res.Reason)
		return fallback
	}
	return res.Text
}
