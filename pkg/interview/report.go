package interview

import (
	"context"
	"errors"
	"strings"

	"interviewcoach/pkg/invoker"
)

// PurposeReport labels final-report calls in metrics.
const PurposeReport = "report"

// ConfidenceTrendLength is the fixed number of confidence samples in a report.
const ConfidenceTrendLength = 5

// NotEvaluated is the feedback for a question the report did not cover.
const NotEvaluated = "Not evaluated."

// ErrReportUnavailable is returned when the final report could not be generated.
var ErrReportUnavailable = errors.New("final report unavailable")

// QuestionScore is the per-question entry of a report.
type QuestionScore struct {
	Question string `json:"question"`
	Feedback string `json:"feedback"`
	Score    int    `json:"score"`
}

// Report is the final structured interview assessment.
type Report struct {
	SentimentTrend      string          `json:"sentiment_trend"`
	KeywordFeedback     string          `json:"keyword_feedback"`
	Strengths           []string        `json:"strengths"`
	Weaknesses          []string        `json:"weaknesses"`
	ImprovementTips     []string        `json:"improvement_tips"`
	ConfidenceTrend     []int           `json:"confidence_trend"`
	QuestionBreakdown   []QuestionScore `json:"question_breakdown"`
	OverallScore        int             `json:"overall_score"`
	CommunicationScore  int             `json:"communication_score"`
	TechnicalScore      int             `json:"technical_score"`
	BehavioralScore     int             `json:"behavioral_score"`
	ProblemSolvingScore int             `json:"problem_solving_score"`
	StarAdherence       int             `json:"star_adherence"`
}

// DefaultReport is the empty report used when generation fails.
func DefaultReport() Report {
	return Report{
		SentimentTrend:    NotApplicable,
		KeywordFeedback:   NotApplicable,
		Strengths:         []string{},
		Weaknesses:        []string{},
		ImprovementTips:   []string{},
		ConfidenceTrend:   make([]int, ConfidenceTrendLength),
		QuestionBreakdown: []QuestionScore{},
	}
}

type questionScoreReply struct {
	Question string `json:"question"`
	Feedback string `json:"feedback"`
	Score    number `json:"score"`
}

type reportReply struct {
	SentimentTrend      string               `json:"sentiment_trend"`
	KeywordFeedback     string               `json:"keyword_feedback"`
	Strengths           []string             `json:"strengths"`
	Weaknesses          []string             `json:"weaknesses"`
	ImprovementTips     []string             `json:"improvement_tips"`
	ConfidenceTrend     []number             `json:"confidence_trend"`
	QuestionBreakdown   []questionScoreReply `json:"question_breakdown"`
	OverallScore        number               `json:"overall_score"`
	CommunicationScore  number               `json:"communication_score"`
	TechnicalScore      number               `json:"technical_score"`
	BehavioralScore     number               `json:"behavioral_score"`
	ProblemSolvingScore number               `json:"problem_solving_score"`
	StarAdherence       number               `json:"star_adherence"`
}

// BuildReportRequest renders the final-report request.
func (c *Catalog) BuildReportRequest(transcript Transcript, t Type) (invoker.Request, error) {
	prompt, err := c.Render(ReportTemplate, struct {
		Type        Type
		Transcript  string
		PairCount   int
		TrendLength int
	}{t, transcript.String(), len(transcript.Pairs()), ConfidenceTrendLength})
	if err != nil {
		return invoker.Request{}, err
	}
	return invoker.Request{
		Prompt:  prompt,
		Purpose: PurposeReport,
		Shape:   invoker.Structured("overall_score"),
	}, nil
}

// GenerateReport produces the final report for transcript. On failure it returns
// DefaultReport together with ErrReportUnavailable.
func GenerateReport(ctx context.Context, inv Invoker, transcript Transcript, t Type) (Report, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return DefaultReport(), errors.Join(ErrReportUnavailable, err)
	}
	req, err := catalog.BuildReportRequest(transcript, t)
	if err != nil {
		return DefaultReport(), errors.Join(ErrReportUnavailable, err)
	}

	res := inv.Invoke(ctx, req)
	if !res.Ok() {
		logger.Warn("Final report unavailable (%s)", res.Reason)
		return DefaultReport(), ErrReportUnavailable
	}

	var reply reportReply
	if err := res.Decode(&reply); err != nil {
		logger.Warn("Final report reply did not decode: %v", err)
		return DefaultReport(), errors.Join(ErrReportUnavailable, err)
	}
	return normalizeReport(reply, transcript.Pairs()), nil
}

func normalizeReport(reply reportReply, pairs []QA) Report {
	out := Report{
		OverallScore:        clamp(reply.OverallScore, 0, 100),
		CommunicationScore:  clamp(reply.CommunicationScore, 0, 100),
		TechnicalScore:      clamp(reply.TechnicalScore, 0, 100),
		BehavioralScore:     clamp(reply.BehavioralScore, 0, 100),
		ProblemSolvingScore: clamp(reply.ProblemSolvingScore, 0, 100),
		StarAdherence:       clamp(reply.StarAdherence, 0, 10),
		SentimentTrend:      strings.TrimSpace(reply.SentimentTrend),
		KeywordFeedback:     strings.TrimSpace(reply.KeywordFeedback),
		Strengths:           nonEmpty(reply.Strengths),
		Weaknesses:          nonEmpty(reply.Weaknesses),
		ImprovementTips:     nonEmpty(reply.ImprovementTips),
		ConfidenceTrend:     make([]int, ConfidenceTrendLength),
		QuestionBreakdown:   make([]QuestionScore, len(pairs)),
	}

	last := 0
	for i := range out.ConfidenceTrend {
		if i < len(reply.ConfidenceTrend) {
			last = clamp(reply.ConfidenceTrend[i], 0, 100)
		}
		out.ConfidenceTrend[i] = last
	}

	for i, pair := range pairs {
		entry := QuestionScore{Question: pair.Question, Score: 0, Feedback: NotEvaluated}
		if i < len(reply.QuestionBreakdown) {
			got := reply.QuestionBreakdown[i]
			entry.Score = clamp(got.Score, 0, 10)
			if fb := strings.TrimSpace(got.Feedback); fb != "" {
				entry.Feedback = fb
			}
		}
		out.QuestionBreakdown[i] = entry
	}
	return out
}
