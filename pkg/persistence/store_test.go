package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewcoach/pkg/interview"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// steppingClock returns increasing times so rows order deterministically.
func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	s := newTestStore(t)

	version, err := s.GetSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	require.NoError(t, s.initializeSchemaWithMigrations(), "migrations are idempotent")
	require.NoError(t, s.Ping())
	assert.Equal(t, DriverSQLite, s.Driver())
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "x")
	assert.ErrorContains(t, err, "unsupported")
}

func TestSaveAndGetInterviewRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	rec := &InterviewRecord{
		CandidateID:  "cand-1",
		Type:         "technical",
		Difficulty:   "medium",
		Transcript:   "AI: Q1\nUser: A1",
		Report:       `{"overall_score":72}`,
		OverallScore: 72,
	}
	id, err := s.SaveInterviewRecord(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := s.GetInterviewRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec.CandidateID, got.CandidateID)
	assert.Equal(t, rec.Transcript, got.Transcript)
	assert.Equal(t, rec.Report, got.Report)
	assert.Equal(t, 72, got.OverallScore)
	assert.True(t, rec.CreatedAt.UTC().Equal(got.CreatedAt))

	_, err = s.GetInterviewRecord(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveInterviewRecordRequiresCandidate(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveInterviewRecord(t.Context(), &InterviewRecord{})
	assert.Error(t, err)
}

func TestListInterviewRecordsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	s.now = steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := t.Context()

	for _, transcript := range []string{"first", "second", "third"} {
		_, err := s.SaveInterviewRecord(ctx, &InterviewRecord{CandidateID: "c", Transcript: transcript, Report: "{}"})
		require.NoError(t, err)
	}
	_, err := s.SaveInterviewRecord(ctx, &InterviewRecord{CandidateID: "other", Report: "{}"})
	require.NoError(t, err)

	records, err := s.ListInterviewRecords(ctx, "c", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "third", records[0].Transcript)
	assert.Equal(t, "first", records[2].Transcript)

	records, err = s.ListInterviewRecords(ctx, "c", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestGetLatestAnalysis(t *testing.T) {
	s := newTestStore(t)
	s.now = steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := t.Context()

	rc, err := s.GetLatestAnalysis(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, rc, "anonymous candidates have no context")

	rc, err = s.GetLatestAnalysis(ctx, "cand")
	require.NoError(t, err)
	assert.Nil(t, rc)

	require.NoError(t, s.SaveResumeAnalysis(ctx, &ResumeAnalysis{
		CandidateID: "cand", PredictedField: "Data Science", ExperienceLevel: "Junior",
		Skills: []string{"python"}, Summary: "old",
	}))
	long := make([]rune, interview.MaxSummaryChars+50)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, s.SaveResumeAnalysis(ctx, &ResumeAnalysis{
		CandidateID: "cand", PredictedField: "Backend", ExperienceLevel: "Senior",
		Skills: []string{"go", "sql"}, Summary: string(long),
	}))

	rc, err = s.GetLatestAnalysis(ctx, "cand")
	require.NoError(t, err)
	require.NotNil(t, rc)
	assert.Equal(t, "Backend", rc.Field)
	assert.Equal(t, "Senior", rc.Level)
	assert.Equal(t, []string{"go", "sql"}, rc.Skills)
	assert.Len(t, []rune(rc.Summary), interview.MaxSummaryChars)
}

func TestGetLatestAnalysisDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.SaveResumeAnalysis(ctx, &ResumeAnalysis{CandidateID: "cand"}))

	rc, err := s.GetLatestAnalysis(ctx, "cand")
	require.NoError(t, err)
	require.NotNil(t, rc)
	assert.Equal(t, "General", rc.Field)
	assert.Equal(t, "N/A", rc.Level)
	assert.Empty(t, rc.Skills)
}

func TestHookLedgers(t *testing.T) {
	s := newTestStore(t)
	s.now = steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := t.Context()

	total, err := s.TotalXP(ctx, "cand")
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, s.AwardXP(ctx, "cand", 200, "completing a Mock Interview"))
	require.NoError(t, s.AwardXP(ctx, "cand", 50, "uploading a resume"))
	total, err = s.TotalXP(ctx, "cand")
	require.NoError(t, err)
	assert.Equal(t, 250, total)

	require.NoError(t, s.QuestEvent(ctx, "cand", "mock_interview"))
	count, err := s.CountQuestEvents(ctx, "cand", "mock_interview")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.Notify(ctx, "cand", "first", "/a"))
	require.NoError(t, s.Notify(ctx, "cand", "second", "/b"))
	notes, err := s.ListNotifications(ctx, "cand")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "second", notes[0].Message)
	assert.Equal(t, "/b", notes[0].Link)
	assert.False(t, notes[0].Read)
}

func TestRebind(t *testing.T) {
	sqlite := &Store{driver: DriverSQLite}
	pg := &Store{driver: DriverPostgres}

	query := `SELECT a FROM t WHERE b = ? AND c = ?`
	assert.Equal(t, query, sqlite.rebind(query))
	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c = $2`, pg.rebind(query))
}

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 3, 4, 5, 6, 7, 8, time.FixedZone("x", 3600))
	out, err := parseTime(formatTime(in))
	require.NoError(t, err)
	assert.True(t, in.Equal(out))

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "file:x.db?mode=ro", sqliteDSN("file:x.db?mode=ro"))
	assert.Contains(t, sqliteDSN("data/interviews.db"), "journal_mode(WAL)")
}
