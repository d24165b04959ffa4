package decisionlog

import (
	"sync"
	"testing"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (e *captureEmitter) Emit(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func TestRecorderOrderAndStamping(t *testing.T) {
	r := NewRecorder("s1", nil)
	r.Record("ANALYZING", "stage_start", "first", nil, nil)
	r.Record("MATCHING", "stage_start", "second", map[string]any{"candidates": 3}, nil)

	events := r.Events()
	if len(events) != 2 {
		t.Fatalf("events=%d want=2", len(events))
	}
	if events[0].Message != "first" || events[1].Message != "second" {
		t.Fatalf("order wrong: %+v", events)
	}
	for _, event := range events {
		if event.SessionID != "s1" {
			t.Fatalf("session=%s want=s1", event.SessionID)
		}
		if event.Timestamp.IsZero() {
			t.Fatal("timestamp not stamped")
		}
	}
	if events[1].Timestamp.Before(events[0].Timestamp) {
		t.Fatal("timestamps out of order")
	}
}

func TestRecorderCopiesInfluence(t *testing.T) {
	r := NewRecorder("s1", nil)
	influence := map[string]float64{"stock_levels": 0.3}
	r.Record("ANALYZING", "stage_complete", "done", nil, influence)

	influence["stock_levels"] = 0.9
	influence["route_efficiency"] = 0.1

	got := r.Events()[0].Influence
	if got["stock_levels"] != 0.3 || len(got) != 1 {
		t.Fatalf("influence mutated after record: %+v", got)
	}
}

func TestRecorderMirrorsToEmitter(t *testing.T) {
	emitter := &captureEmitter{}
	r := NewRecorder("s1", emitter)
	r.Record("DONE", "stage_complete", "run complete", nil, nil)

	if len(emitter.events) != 1 || emitter.events[0].Message != "run complete" {
		t.Fatalf("emitter events=%+v", emitter.events)
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	a := &captureEmitter{}
	b := &captureEmitter{}
	multi := MultiEmitter{a, nil, b}

	multi.Emit(Event{Message: "hello"})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fan-out failed: a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestEventsReturnsCopy(t *testing.T) {
	r := NewRecorder("s1", nil)
	r.Record("IDLE", "note", "one", nil, nil)

	events := r.Events()
	events[0].Message = "mutated"

	if r.Events()[0].Message != "one" {
		t.Fatal("Events exposed internal slice")
	}
}
