package session

import (
	"interviewcoach/pkg/interview"
)

// Outbound event names.
const (
	EventStatus            = "status"
	EventInterviewQuestion = "interview_question"
	EventSentimentFeedback = "sentiment_feedback"
	EventReportReady       = "report_ready"
	EventError             = "error"
)

// ReportFailedMessage is shown when an interview could not be finalized.
const ReportFailedMessage = "Could not generate report."

// Emitter delivers events to one connection.
type Emitter interface {
	Emit(event string, data any) error
}

// QuestionEvent carries the next interviewer question.
type QuestionEvent struct {
	Question   string               `json:"question"`
	Type       interview.Type       `json:"type"`
	Difficulty interview.Difficulty `json:"difficulty"`
	Round      int                  `json:"round"`
}

// FeedbackEvent carries the critique of the answer given in Round.
type FeedbackEvent struct {
	Feedback interview.Critique `json:"feedback"`
	Round    int                `json:"round"`
}

// ReportReadyEvent points at the saved report, or explains why there is none.
type ReportReadyEvent struct {
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ErrorEvent reports a rejected signal.
type ErrorEvent struct {
	Message string `json:"message"`
}

// StatusEvent is informational.
type StatusEvent struct {
	Msg string `json:"msg"`
}
