package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"interviewcoach/pkg/session"
)

// Inbound signal names.
const (
	SignalStartInterview = "start_interview"
	SignalSendAnswer     = "send_answer"
	SignalEndInterview   = "end_interview"
)

// GreetingMessage is sent on every new connection.
const GreetingMessage = "Connected to AI Interview Coach"

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	signalBacklog  = 8
)

// Envelope is the wire format of every WebSocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type startSignal struct {
	Type       string `json:"type"`
	Difficulty string `json:"difficulty"`
}

type answerSignal struct {
	Answer string `json:"answer"`
}

// socketEmitter writes events to one WebSocket; writes are serialized.
type socketEmitter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (e *socketEmitter) Emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := e.conn.WriteJSON(Envelope{Event: event, Data: payload}); err != nil {
		return fmt.Errorf("failed to write %s event: %w", event, err)
	}
	return nil
}

// handleInterviewSocket implements /ws/interview. Signals from one connection are
// handled one at a time; closing the socket discards the session and cancels the
// context of the signal in flight.
func (s *Server) handleInterviewSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxMessageSize)

	connID := uuid.NewString()
	candidateID := strings.TrimSpace(r.Header.Get(CandidateHeader))
	emitter := &socketEmitter{conn: conn}

	s.sessions.Connect(connID, candidateID, emitter)
	defer s.sessions.Disconnect(connID)
	s.logger.Debug("Connection %s opened (candidate %q)", connID, candidateID)

	if err := emitter.Emit(session.EventStatus, session.StatusEvent{Msg: GreetingMessage}); err != nil {
		s.logger.Warn("Failed to greet %s: %v", connID, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan Envelope, signalBacklog)
	go func() {
		defer cancel()
		// Discard the session as soon as the socket is gone so a turn in flight
		// drops its results instead of asking the next question.
		defer s.sessions.Disconnect(connID)
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Warn("Connection %s closed unexpectedly: %v", connID, err)
				}
				return
			}
			select {
			case signals <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Connection %s closed", connID)
			return
		case env := <-signals:
			s.dispatch(ctx, connID, emitter, env)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, connID string, emitter *socketEmitter, env Envelope) {
	var err error
	switch env.Event {
	case SignalStartInterview:
		var sig startSignal
		if err = decodeSignal(env.Data, &sig); err == nil {
			err = s.sessions.Start(ctx, connID, sig.Type, sig.Difficulty)
		}
	case SignalSendAnswer:
		var sig answerSignal
		if err = decodeSignal(env.Data, &sig); err == nil {
			err = s.sessions.Answer(ctx, connID, sig.Answer)
		}
	case SignalEndInterview:
		err = s.sessions.End(ctx, connID)
	default:
		err = fmt.Errorf("%w: %q", errUnknownSignal, env.Event)
	}
	if err == nil {
		return
	}

	if !session.IsClientError(err) && !errors.Is(err, errBadSignal) && !errors.Is(err, errUnknownSignal) {
		s.logger.Error("Signal %s on %s failed: %v", env.Event, connID, err)
	}
	if emitErr := emitter.Emit(session.EventError, session.ErrorEvent{Message: err.Error()}); emitErr != nil {
		s.logger.Warn("Failed to report error to %s: %v", connID, emitErr)
	}
}

var (
	errBadSignal     = errors.New("malformed signal payload")
	errUnknownSignal = errors.New("unknown event")
)

func decodeSignal(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", errBadSignal, err)
	}
	return nil
}
