package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// AwardXP appends an XP ledger entry.
func (s *Store) AwardXP(ctx context.Context, candidateID string, amount int, reason string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO xp_events (id, candidate_id, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`), NewID(), candidateID, amount, reason, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("failed to award xp: %w", err)
	}
	return nil
}

// TotalXP sums a candidate's XP ledger.
func (s *Store) TotalXP(ctx context.Context, candidateID string) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT SUM(amount) FROM xp_events WHERE candidate_id = ?`), candidateID).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum xp: %w", err)
	}
	return int(total.Int64), nil
}

// QuestEvent records an action that quest progress is derived from.
func (s *Store) QuestEvent(ctx context.Context, candidateID, action string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO quest_events (id, candidate_id, action, created_at)
		VALUES (?, ?, ?, ?)`), NewID(), candidateID, action, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("failed to record quest event: %w", err)
	}
	return nil
}

// CountQuestEvents counts a candidate's events for action.
func (s *Store) CountQuestEvents(ctx context.Context, candidateID, action string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM quest_events WHERE candidate_id = ? AND action = ?`),
		candidateID, action).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count quest events: %w", err)
	}
	return n, nil
}

// Notify stores an unread notification.
func (s *Store) Notify(ctx context.Context, candidateID, message, link string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO notifications (id, candidate_id, message, link, is_read, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`), NewID(), candidateID, message, link, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// ListNotifications returns a candidate's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, candidateID string) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, candidate_id, message, link, is_read, created_at
		FROM notifications WHERE candidate_id = ? ORDER BY created_at DESC`), candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Notification
	for rows.Next() {
		var (
			n         Notification
			read      int
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.CandidateID, &n.Message, &n.Link, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Read = read != 0
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return out, nil
}
