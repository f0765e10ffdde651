package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DefaultListLimit bounds ListInterviewRecords when limit <= 0.
const DefaultListLimit = 50

const recordColumns = `id, candidate_id, interview_type, difficulty, transcript, report, overall_score, created_at`

// SaveInterviewRecord inserts rec and returns its ID. Missing ID and CreatedAt are filled in.
func (s *Store) SaveInterviewRecord(ctx context.Context, rec *InterviewRecord) (string, error) {
	if rec.CandidateID == "" {
		return "", fmt.Errorf("interview record requires a candidate")
	}
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	query := s.rebind(`INSERT INTO interview_records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.CandidateID, rec.Type, rec.Difficulty, rec.Transcript, rec.Report, rec.OverallScore,
		formatTime(rec.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("failed to save interview record: %w", err)
	}
	return rec.ID, nil
}

// GetInterviewRecord returns the record with id, or ErrNotFound.
func (s *Store) GetInterviewRecord(ctx context.Context, id string) (*InterviewRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+recordColumns+` FROM interview_records WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interview record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListInterviewRecords returns a candidate's records, newest first.
func (s *Store) ListInterviewRecords(ctx context.Context, candidateID string, limit int) ([]*InterviewRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+recordColumns+` FROM interview_records WHERE candidate_id = ? ORDER BY created_at DESC LIMIT ?`),
		candidateID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list interview records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*InterviewRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interview records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*InterviewRecord, error) {
	var (
		rec       InterviewRecord
		createdAt string
	)
	err := row.Scan(&rec.ID, &rec.CandidateID, &rec.Type, &rec.Difficulty, &rec.Transcript, &rec.Report,
		&rec.OverallScore, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err //nolint:wrapcheck // sentinel checked by caller
		}
		return nil, fmt.Errorf("failed to scan interview record: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
