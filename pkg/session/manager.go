package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"interviewcoach/pkg/agent/middleware/metrics"
	"interviewcoach/pkg/finalize"
	"interviewcoach/pkg/interview"
	"interviewcoach/pkg/logx"
)

// Reasons a session ends, as reported to metrics.
const (
	EndCompleted    = "completed"
	EndReplaced     = "replaced"
	EndDisconnected = "disconnected"
	EndIdle         = "idle"
)

// Defaults for Config fields left zero.
const (
	DefaultIdleTimeout      = 30 * time.Minute
	DefaultTranscriptWindow = 3
)

// ProfileStore supplies the resume context captured at session start.
type ProfileStore interface {
	GetLatestAnalysis(ctx context.Context, candidateID string) (*interview.ResumeContext, error)
}

// Finalizer turns a completed session into a saved record.
type Finalizer interface {
	Finalize(ctx context.Context, in finalize.Input) (string, error)
}

// Config tunes a Manager.
type Config struct {
	Now              func() time.Time
	IdleTimeout      time.Duration
	ReapInterval     time.Duration // defaults to a quarter of IdleTimeout
	TranscriptWindow int
}

// connection is one registered client.
type connection struct {
	emitter     Emitter
	candidateID string
}

// entry pairs a session with the lock that serializes its turns.
type entry struct {
	turn       sync.Mutex
	session    *Session // guarded by turn
	conn       *connection
	discarded  atomic.Bool
	busy       atomic.Bool
	lastActive atomic.Int64 // unix nanos
}

// Manager owns every live session, keyed by connection ID.
//
//nolint:govet // logical grouping preferred
type Manager struct {
	mu       sync.Mutex
	conns    map[string]*connection
	entries  map[string]*entry
	invoker  interview.Invoker
	profiles ProfileStore
	final    Finalizer
	recorder metrics.Recorder
	config   Config
	logger   *logx.Logger
}

// NewManager creates a Manager. profiles may be nil (no resume context) and recorder
// may be nil.
func NewManager(cfg Config, inv interview.Invoker, profiles ProfileStore, final Finalizer, recorder metrics.Recorder) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = cfg.IdleTimeout / 4
	}
	if cfg.TranscriptWindow <= 0 {
		cfg.TranscriptWindow = DefaultTranscriptWindow
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Manager{
		conns:    make(map[string]*connection),
		entries:  make(map[string]*entry),
		invoker:  inv,
		profiles: profiles,
		final:    final,
		recorder: recorder,
		config:   cfg,
		logger:   logx.NewLogger("session"),
	}
}

// Connect registers a connection. candidateID is empty for anonymous candidates.
func (m *Manager) Connect(connID, candidateID string, emitter Emitter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[connID] = &connection{emitter: emitter, candidateID: candidateID}
}

// Disconnect forgets a connection and discards its session without finalizing it.
func (m *Manager) Disconnect(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connID)
	if e, ok := m.entries[connID]; ok {
		m.discardLocked(connID, e, EndDisconnected)
	}
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Snapshot returns a copy of the connection's session. It waits for an in-flight turn.
func (m *Manager) Snapshot(connID string) (Session, bool) {
	e := m.lookup(connID)
	if e == nil {
		return Session{}, false
	}
	e.turn.Lock()
	defer e.turn.Unlock()
	return e.session.snapshot(), true
}

// Start begins a new interview on connID, silently replacing any previous one.
// Unknown type and difficulty values fall back to mixed and medium.
func (m *Manager) Start(ctx context.Context, connID, interviewType, difficulty string) error {
	now := m.config.Now()

	m.mu.Lock()
	conn, ok := m.conns[connID]
	if !ok {
		m.mu.Unlock()
		return ErrNoConnection
	}
	if old, ok := m.entries[connID]; ok {
		m.discardLocked(connID, old, EndReplaced)
	}
	e := &entry{
		conn: conn,
		session: &Session{
			ID:          connID,
			CandidateID: conn.candidateID,
			Type:        interview.NormalizeType(interviewType),
			Difficulty:  interview.NormalizeDifficulty(difficulty),
			State:       StateNotStarted,
			Round:       1,
			StartedAt:   now,
			LastActive:  now,
		},
	}
	e.lastActive.Store(now.UnixNano())
	m.entries[connID] = e
	m.mu.Unlock()
	m.recorder.SessionStarted()

	e.turn.Lock()
	defer e.turn.Unlock()
	m.begin(e)
	defer m.finish(e)

	s := e.session
	s.Resume = m.loadResume(ctx, s.CandidateID)
	logx.Debug(ctx, "session", "starting %s/%s interview on %s (resume context: %t)",
		s.Type, s.Difficulty, connID, s.Resume != nil)
	if m.abandoned(ctx, e) {
		return nil
	}

	question := interview.NextQuestion(ctx, m.invoker, interview.QuestionInput{
		Resume:     s.Resume,
		Stage:      interview.StageStart,
		Type:       s.Type,
		Difficulty: s.Difficulty,
		Round:      s.Round,
	})
	if m.abandoned(ctx, e) {
		return nil
	}

	if err := s.transitionTo(StateInProgress); err != nil {
		return err
	}
	s.ask(question)
	m.logger.Info("🎤 Interview started on %s (%s, %s)", connID, s.Type, s.Difficulty)
	m.deliver(e, EventInterviewQuestion, QuestionEvent{
		Question:   question,
		Round:      s.Round,
		Type:       s.Type,
		Difficulty: s.Difficulty,
	})
	return nil
}

// Answer records the candidate's answer, emits its critique and asks the next question.
func (m *Manager) Answer(ctx context.Context, connID, text string) error {
	e := m.lookup(connID)
	if e == nil {
		return ErrNoSession
	}
	e.turn.Lock()
	defer e.turn.Unlock()
	if e.discarded.Load() {
		return ErrNoSession
	}
	s := e.session
	if s.State != StateInProgress {
		return ErrNotInProgress
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyAnswer
	}

	m.begin(e)
	defer m.finish(e)

	question := s.LastQuestion
	s.answer(text)

	critique := interview.CritiqueAnswer(ctx, m.invoker, question, text, s.Type)
	if m.abandoned(ctx, e) {
		return nil
	}
	m.deliver(e, EventSentimentFeedback, FeedbackEvent{Feedback: critique, Round: s.Round})

	s.Round++
	next := interview.NextQuestion(ctx, m.invoker, interview.QuestionInput{
		Resume:         s.Resume,
		PreviousAnswer: text,
		Stage:          interview.StageContinue,
		Type:           s.Type,
		Difficulty:     s.Difficulty,
		Window:         s.Transcript.Window(m.config.TranscriptWindow),
		Round:          s.Round,
	})
	if m.abandoned(ctx, e) {
		return nil
	}

	s.ask(next)
	m.deliver(e, EventInterviewQuestion, QuestionEvent{
		Question:   next,
		Round:      s.Round,
		Type:       s.Type,
		Difficulty: s.Difficulty,
	})
	return nil
}

// End completes the interview, finalizes it and emits report_ready. The session is
// discarded whatever the finalization outcome.
func (m *Manager) End(ctx context.Context, connID string) error {
	e := m.lookup(connID)
	if e == nil {
		return ErrNoSession
	}
	e.turn.Lock()
	defer e.turn.Unlock()
	if e.discarded.Load() {
		return ErrNoSession
	}
	s := e.session
	if err := s.transitionTo(StateCompleted); err != nil {
		return ErrNotInProgress
	}
	m.begin(e)
	defer m.finish(e)

	m.mu.Lock()
	if m.entries[connID] == e {
		delete(m.entries, connID)
	}
	m.mu.Unlock()
	m.recorder.SessionEnded(EndCompleted)

	in := finalize.Input{
		CandidateID: s.CandidateID,
		Transcript:  s.Transcript.Clone(),
		Type:        s.Type,
		Difficulty:  s.Difficulty,
	}
	id, err := m.final.Finalize(ctx, in)
	if err != nil {
		m.logger.Warn("Interview on %s not saved: %v", connID, err)
		m.deliverIfConnected(e, EventReportReady, ReportReadyEvent{Error: ReportFailedMessage})
		return nil
	}
	m.logger.Info("🏁 Interview on %s completed after %d rounds (record %s)", connID, s.Round, id)
	m.deliverIfConnected(e, EventReportReady, ReportReadyEvent{Redirect: finalize.ReportLink(id)})
	return nil
}

// ReapIdle discards sessions idle for longer than the idle timeout and returns how many
// were discarded. Sessions in the middle of a turn are never reaped.
func (m *Manager) ReapIdle() int {
	cutoff := m.config.Now().Add(-m.config.IdleTimeout).UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()
	reaped := 0
	for connID, e := range m.entries {
		if e.busy.Load() || e.lastActive.Load() > cutoff {
			continue
		}
		m.discardLocked(connID, e, EndIdle)
		reaped++
	}
	return reaped
}

// Run reaps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Session reaper stopping")
			return
		case <-ticker.C:
			if n := m.ReapIdle(); n > 0 {
				m.logger.Info("🧹 Reaped %d idle sessions", n)
			}
		}
	}
}

func (m *Manager) lookup(connID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[connID]
}

// discardLocked drops a session without finalizing it. m.mu must be held.
func (m *Manager) discardLocked(connID string, e *entry, reason string) {
	delete(m.entries, connID)
	e.discarded.Store(true)
	m.recorder.SessionEnded(reason)
	if reason != EndReplaced {
		m.logger.Warn("Interview on %s abandoned (%s); transcript discarded", connID, reason)
	}
}

// abandoned reports whether a turn must stop: its session was discarded, or the caller
// went away mid-turn, in which case the session is discarded now.
func (m *Manager) abandoned(ctx context.Context, e *entry) bool {
	if e.discarded.Load() {
		return true
	}
	if ctx.Err() == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[e.session.ID] == e {
		m.discardLocked(e.session.ID, e, EndDisconnected)
	}
	e.discarded.Store(true)
	return true
}

func (m *Manager) loadResume(ctx context.Context, candidateID string) *interview.ResumeContext {
	if m.profiles == nil || candidateID == "" {
		return nil
	}
	rc, err := m.profiles.GetLatestAnalysis(ctx, candidateID)
	if err != nil {
		m.logger.Warn("Resume context unavailable for %s: %v", candidateID, err)
		return nil
	}
	return rc
}

func (m *Manager) begin(e *entry) {
	e.busy.Store(true)
	m.touch(e)
}

func (m *Manager) finish(e *entry) {
	m.touch(e)
	e.busy.Store(false)
}

func (m *Manager) touch(e *entry) {
	now := m.config.Now()
	e.lastActive.Store(now.UnixNano())
	e.session.LastActive = now
}

// deliver emits to a live session's connection; results for discarded sessions are dropped.
func (m *Manager) deliver(e *entry, event string, data any) {
	if e.discarded.Load() {
		logx.Debug(context.Background(), "session", "dropping %s for discarded session %s", event, e.session.ID)
		return
	}
	m.send(e, event, data)
}

// deliverIfConnected emits to the session's connection if it is still registered.
func (m *Manager) deliverIfConnected(e *entry, event string, data any) {
	m.mu.Lock()
	current := m.conns[e.session.ID]
	m.mu.Unlock()
	if current != e.conn {
		logx.Debug(context.Background(), "session", "dropping %s for closed connection %s", event, e.session.ID)
		return
	}
	m.send(e, event, data)
}

func (m *Manager) send(e *entry, event string, data any) {
	if err := e.conn.emitter.Emit(event, data); err != nil {
		m.logger.Warn("Failed to emit %s to %s: %v", event, e.session.ID, err)
	}
}

// IsClientError reports whether err is a rejected signal rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoSession) || errors.Is(err, ErrNotInProgress) ||
		errors.Is(err, ErrEmptyAnswer) || errors.Is(err, ErrNoConnection)
}
