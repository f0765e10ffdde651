package interview

import (
	"context"
	"strings"

	"interviewcoach/pkg/invoker"
)

// PurposeCritique labels answer-critique calls in metrics.
const PurposeCritique = "critique"

// Values used when a critique cannot be produced or does not apply.
const (
	SentimentError          = "error"
	DefaultCritiqueFeedback = "Could not analyze response."
	DefaultCritiqueTip      = "AI Service unavailable"
	NotApplicable           = "N/A"
)

// Critique is the real-time feedback for one answer.
type Critique struct {
	Sentiment        string   `json:"sentiment"`
	Feedback         string   `json:"feedback"`
	ImprovementTip   string   `json:"improvement_tip"`
	StarFeedback     string   `json:"star_feedback"`
	KeywordsDetected []string `json:"keywords_detected"`
	Score            int      `json:"score"`
	StarAdherence    int      `json:"star_adherence"`
}

// DefaultCritique is returned when the invoker fails.
func DefaultCritique() Critique {
	return Critique{
		Score:            0,
		Sentiment:        SentimentError,
		Feedback:         DefaultCritiqueFeedback,
		ImprovementTip:   DefaultCritiqueTip,
		KeywordsDetected: []string{},
		StarAdherence:    0,
		StarFeedback:     NotApplicable,
	}
}

type critiqueReply struct {
	Sentiment        string   `json:"sentiment"`
	Feedback         string   `json:"feedback"`
	ImprovementTip   string   `json:"improvement_tip"`
	StarFeedback     string   `json:"star_feedback"`
	KeywordsDetected []string `json:"keywords_detected"`
	Score            number   `json:"score"`
	StarAdherence    number   `json:"star_adherence"`
}

// BuildCritiqueRequest renders the critique request.
func (c *Catalog) BuildCritiqueRequest(question, answer string, t Type) (invoker.Request, error) {
	prompt, err := c.Render(CritiqueTemplate, struct {
		Question string
		Answer   string
		STAR     bool
	}{question, answer, t.WantsSTAR()})
	if err != nil {
		return invoker.Request{}, err
	}

	required := []string{"score", "sentiment", "feedback"}
	return invoker.Request{
		Prompt:  prompt,
		Purpose: PurposeCritique,
		Shape:   invoker.Structured(required...),
	}, nil
}

// CritiqueAnswer scores one answer. It never fails: on any error DefaultCritique is returned.
func CritiqueAnswer(ctx context.Context, inv Invoker, question, answer string, t Type) Critique {
	catalog, err := DefaultCatalog()
	if err != nil {
		logger.Error("Prompt catalog unavailable: %v", err)
		return DefaultCritique()
	}
	req, err := catalog.BuildCritiqueRequest(question, answer, t)
	if err != nil {
		logger.Error("Failed to build critique prompt: %v", err)
		return DefaultCritique()
	}

	res := inv.Invoke(ctx, req)
	if !res.Ok() {
		logger.Warn("Critique unavailable (%s); using default", res.Reason)
		return DefaultCritique()
	}

	var reply critiqueReply
	if err := res.Decode(&reply); err != nil {
		logger.Warn("Critique reply did not decode: %v", err)
		return DefaultCritique()
	}
	return normalizeCritique(reply, t)
}

func normalizeCritique(reply critiqueReply, t Type) Critique {
	out := Critique{
		Score:            clamp(reply.Score, 1, 10),
		Sentiment:        normalizeSentiment(reply.Sentiment),
		Feedback:         strings.TrimSpace(reply.Feedback),
		ImprovementTip:   strings.TrimSpace(reply.ImprovementTip),
		KeywordsDetected: nonEmpty(reply.KeywordsDetected),
		StarAdherence:    0,
		StarFeedback:     NotApplicable,
	}
	if t.WantsSTAR() {
		out.StarAdherence = clamp(reply.StarAdherence, 1, 10)
		if fb := strings.TrimSpace(reply.StarFeedback); fb != "" {
			out.StarFeedback = fb
		}
	}
	return out
}

func normalizeSentiment(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "positive", "neutral", "negative":
		return s
	default:
		return "neutral"
	}
}
