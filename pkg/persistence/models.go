package persistence

import (
	"time"

	"github.com/google/uuid"
)

// InterviewRecord is the persisted outcome of one finalized interview. Immutable once saved.
type InterviewRecord struct {
	CreatedAt    time.Time `json:"created_at"`
	ID           string    `json:"id"`
	CandidateID  string    `json:"candidate_id"`
	Type         string    `json:"interview_type"`
	Difficulty   string    `json:"difficulty"`
	Transcript   string    `json:"transcript"`
	Report       string    `json:"report"` // JSON of interview.Report
	OverallScore int       `json:"overall_score"`
}

// ResumeAnalysis is a stored analysis of an uploaded resume.
type ResumeAnalysis struct {
	UploadedAt      time.Time `json:"uploaded_at"`
	ID              string    `json:"id"`
	CandidateID     string    `json:"candidate_id"`
	PredictedField  string    `json:"predicted_field"`
	ExperienceLevel string    `json:"experience_level"`
	Summary         string    `json:"summary"`
	Skills          []string  `json:"skills"`
}

// Notification is an in-app message for a candidate.
type Notification struct {
	CreatedAt   time.Time `json:"created_at"`
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	Message     string    `json:"message"`
	Link        string    `json:"link"`
	Read        bool      `json:"read"`
}

// NewID generates a row identifier.
func NewID() string {
	return uuid.NewString()
}
