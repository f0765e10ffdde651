// Package finalize turns a completed interview transcript into a persisted record.
package finalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"interviewcoach/pkg/agent/middleware/metrics"
	"interviewcoach/pkg/interview"
	"interviewcoach/pkg/logx"
	"interviewcoach/pkg/persistence"
)

// Finalization errors.
var (
	ErrEmptyTranscript = errors.New("empty transcript")
	ErrAnonymous       = errors.New("anonymous candidate: interview not saved")
	ErrReportFailed    = errors.New("failed to generate report")
	ErrPersistence     = errors.New("failed to persist interview record")
)

// Post-interview rewards.
const (
	CompletionXP      = 200
	CompletionReason  = "completing a Mock Interview"
	CompletionQuest   = "mock_interview"
	ReportReadyNotice = "Your interview report is ready"
)

// Finalization outcomes reported to metrics.
const (
	StatusSaved          = "saved"
	StatusEmpty          = "empty_transcript"
	StatusAnonymous      = "anonymous"
	StatusReportFailed   = "report_failed"
	StatusPersistFailure = "persistence_failure"
)

// RecordStore persists interview records.
type RecordStore interface {
	SaveInterviewRecord(ctx context.Context, rec *persistence.InterviewRecord) (string, error)
}

// Hooks are the side effects fired after a record is saved.
type Hooks interface {
	AwardXP(ctx context.Context, candidateID string, amount int, reason string) error
	QuestEvent(ctx context.Context, candidateID, action string) error
	Notify(ctx context.Context, candidateID, message, link string) error
}

// Input is a snapshot of a completed session.
type Input struct {
	CandidateID string
	Transcript  interview.Transcript
	Type        interview.Type
	Difficulty  interview.Difficulty
}

// Finalizer generates the final report and saves the interview.
type Finalizer struct {
	invoker  interview.Invoker
	records  RecordStore
	hooks    Hooks
	recorder metrics.Recorder
	logger   *logx.Logger
}

// New creates a Finalizer. hooks and recorder may be nil.
func New(inv interview.Invoker, records RecordStore, hooks Hooks, recorder metrics.Recorder) *Finalizer {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Finalizer{
		invoker:  inv,
		records:  records,
		hooks:    hooks,
		recorder: recorder,
		logger:   logx.NewLogger("finalize"),
	}
}

// ReportLink is where a saved record's report is served.
func ReportLink(recordID string) string {
	return "/interviews/" + recordID + "/report"
}

// Finalize generates the report for in and persists exactly one record, returning its ID.
// Anonymous candidates get ErrAnonymous and nothing is stored.
func (f *Finalizer) Finalize(ctx context.Context, in Input) (string, error) {
	if len(in.Transcript) == 0 {
		f.recorder.IncFinalized(StatusEmpty)
		return "", ErrEmptyTranscript
	}
	if in.CandidateID == "" {
		f.recorder.IncFinalized(StatusAnonymous)
		return "", ErrAnonymous
	}

	report, err := interview.GenerateReport(ctx, f.invoker, in.Transcript, in.Type)
	if err != nil {
		f.recorder.IncFinalized(StatusReportFailed)
		return "", fmt.Errorf("%w: %w", ErrReportFailed, err)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		f.recorder.IncFinalized(StatusReportFailed)
		return "", fmt.Errorf("%w: %w", ErrReportFailed, err)
	}

	rec := &persistence.InterviewRecord{
		CandidateID:  in.CandidateID,
		Type:         string(in.Type),
		Difficulty:   string(in.Difficulty),
		Transcript:   in.Transcript.String(),
		Report:       string(reportJSON),
		OverallScore: report.OverallScore,
	}
	id, err := f.records.SaveInterviewRecord(ctx, rec)
	if err != nil {
		f.recorder.IncFinalized(StatusPersistFailure)
		f.logger.Error("Failed to save interview for candidate %s: %v", in.CandidateID, err)
		return "", fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	f.recorder.IncFinalized(StatusSaved)
	f.logger.Info("💾 Saved interview %s for candidate %s (score %d)", id, in.CandidateID, report.OverallScore)
	f.runHooks(ctx, in.CandidateID, id)
	return id, nil
}

func (f *Finalizer) runHooks(ctx context.Context, candidateID, recordID string) {
	if f.hooks == nil {
		return
	}
	if err := f.hooks.AwardXP(ctx, candidateID, CompletionXP, CompletionReason); err != nil {
		f.logger.Warn("XP award failed for %s: %v", candidateID, err)
	}
	if err := f.hooks.QuestEvent(ctx, candidateID, CompletionQuest); err != nil {
		f.logger.Warn("Quest event failed for %s: %v", candidateID, err)
	}
	if err := f.hooks.Notify(ctx, candidateID, ReportReadyNotice, ReportLink(recordID)); err != nil {
		f.logger.Warn("Notification failed for %s: %v", candidateID, err)
	}
}
