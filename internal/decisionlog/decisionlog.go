// Package decisionlog records the ordered, append-only trail of stage events an
// analysis run emits. Recording is in-memory and owned by the run; mirroring to
// external sinks is fire-and-forget and must never block or fail a run.
package decisionlog

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is a single structured stage event.
type Event struct {
	Timestamp time.Time          `json:"timestamp"`
	SessionID string             `json:"session_id"`
	Stage     string             `json:"stage"`
	Type      string             `json:"type"`
	Message   string             `json:"message"`
	Data      map[string]any     `json:"data,omitempty"`
	Influence map[string]float64 `json:"influence_factors,omitempty"`
}

// Emitter mirrors events to an external sink. Implementations must be
// best-effort: they may drop events but may not block the caller.
type Emitter interface {
	Emit(event Event)
}

// Recorder accumulates the ordered event log for one run and fans out to an
// optional emitter.
type Recorder struct {
	sessionID string
	emitter   Emitter

	mu     sync.Mutex
	events []Event
}

func NewRecorder(sessionID string, emitter Emitter) *Recorder {
	return &Recorder{
		sessionID: sessionID,
		emitter:   emitter,
	}
}

// Record appends an event, stamping session and time. The influence map is
// copied so later mutation by the caller cannot rewrite history.
func (r *Recorder) Record(stage, eventType, message string, data map[string]any, influence map[string]float64) {
	event := Event{
		Timestamp: time.Now(),
		SessionID: r.sessionID,
		Stage:     stage,
		Type:      eventType,
		Message:   message,
		Data:      data,
		Influence: copyInfluence(influence),
	}

	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()

	if r.emitter != nil {
		r.emitter.Emit(event)
	}
}

// Events returns a copy of the ordered log recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func copyInfluence(in map[string]float64) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ZerologEmitter mirrors decision events to a zerolog logger.
type ZerologEmitter struct {
	Logger zerolog.Logger
}

func (e ZerologEmitter) Emit(event Event) {
	evt := e.Logger.Info().
		Str("session_id", event.SessionID).
		Str("stage", event.Stage).
		Str("decision_type", event.Type)
	if len(event.Data) > 0 {
		evt = evt.Fields(event.Data)
	}
	evt.Msg(event.Message)
}

// MultiEmitter fans one event out to several sinks.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
