package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"interviewcoach/pkg/interview"
)

// SaveResumeAnalysis stores an analysis. Missing ID and UploadedAt are filled in.
func (s *Store) SaveResumeAnalysis(ctx context.Context, a *ResumeAnalysis) error {
	if a.CandidateID == "" {
		return fmt.Errorf("resume analysis requires a candidate")
	}
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.UploadedAt.IsZero() {
		a.UploadedAt = s.now()
	}
	skills := a.Skills
	if skills == nil {
		skills = []string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO resume_analyses
		(id, candidate_id, predicted_field, experience_level, skills, summary, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.CandidateID, a.PredictedField, a.ExperienceLevel, string(skillsJSON), a.Summary, formatTime(a.UploadedAt))
	if err != nil {
		return fmt.Errorf("failed to save resume analysis: %w", err)
	}
	return nil
}

// GetLatestAnalysis returns interview context from the candidate's most recent
// resume analysis. It returns nil without error for anonymous candidates and
// candidates with no analysis.
func (s *Store) GetLatestAnalysis(ctx context.Context, candidateID string) (*interview.ResumeContext, error) {
	if candidateID == "" {
		return nil, nil
	}

	var (
		field, level, skillsJSON, summary string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT predicted_field, experience_level, skills, summary
		FROM resume_analyses WHERE candidate_id = ? ORDER BY uploaded_at DESC LIMIT 1`), candidateID).
		Scan(&field, &level, &skillsJSON, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load resume analysis: %w", err)
	}

	rc := &interview.ResumeContext{
		Field:   field,
		Level:   level,
		Summary: interview.TruncateSummary(summary),
	}
	if rc.Field == "" {
		rc.Field = "General"
	}
	if rc.Level == "" {
		rc.Level = "N/A"
	}
	if err := json.Unmarshal([]byte(skillsJSON), &rc.Skills); err != nil {
		s.logger.Warn("Ignoring unreadable skills for candidate %s: %v", candidateID, err)
		rc.Skills = nil
	}
	return rc, nil
}
