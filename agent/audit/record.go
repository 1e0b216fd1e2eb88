package audit

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type TranscriptEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type SlotValue struct {
	Value       string    `json:"value"`
	Confidence  float64   `json:"confidence"`
	ExtractedAt time.Time `json:"extracted_at"`
}

type ToolTrace struct {
	Tool       string         `json:"tool"`
	Input      map[string]any `json:"input"`
	Output     map[string]any `json:"output"`
	OK         bool           `json:"ok"`
	DurationMs float64        `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type Outcome struct {
	Booked         bool    `json:"booked"`
	ConfirmationID *string `json:"confirmation_id"`
	NextSteps      *string `json:"next_steps"`
}

// Record is the audit document of one voice call.
type Record struct {
	CallID        string               `json:"call_id"`
	PromptVersion string               `json:"prompt_version"`
	StartedAt     time.Time            `json:"started_at"`
	EndedAt       *time.Time           `json:"ended_at"`
	Transcript    []TranscriptEntry    `json:"transcript"`
	Intents       []string             `json:"intents"`
	Slots         map[string]SlotValue `json:"slots"`
	ToolTrace     []ToolTrace          `json:"tool_trace"`
	Outcome       Outcome              `json:"outcome"`
}

func (r *Record) Finalized() bool {
	return r.EndedAt != nil
}

type RecorderOption func(*Recorder)

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

func WithCallID(id string) RecorderOption {
	return func(r *Recorder) {
		if id != "" {
			r.rec.CallID = id
		}
	}
}

// Recorder collects a Record while the call is live. Safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	rec Record
	now func() time.Time
}

func NewRecorder(promptVersion string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		rec: Record{
			CallID:        uuid.NewString(),
			PromptVersion: promptVersion,
			Transcript:    []TranscriptEntry{},
			Intents:       []string{},
			Slots:         map[string]SlotValue{},
			ToolTrace:     []ToolTrace{},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.rec.StartedAt = r.now().UTC()
	return r
}

func (r *Recorder) CallID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.CallID
}

func (r *Recorder) AddTranscript(role, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Transcript = append(r.rec.Transcript, TranscriptEntry{Role: role, Text: text, Timestamp: r.now().UTC()})
}

// AddIntent appends intent once; repeats are ignored.
func (r *Recorder) AddIntent(intent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rec.Intents {
		if existing == intent {
			return
		}
	}
	r.rec.Intents = append(r.rec.Intents, intent)
}

func (r *Recorder) SetSlot(name, value string, confidence float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Slots[name] = SlotValue{Value: value, Confidence: confidence, ExtractedAt: r.now().UTC()}
}

func (r *Recorder) AddToolTrace(trace ToolTrace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if trace.Timestamp.IsZero() {
		trace.Timestamp = r.now().UTC()
	}
	r.rec.ToolTrace = append(r.rec.ToolTrace, trace)
}

func (r *Recorder) SetOutcome(booked bool, confirmationID, nextSteps string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Outcome = Outcome{Booked: booked, ConfirmationID: optional(confirmationID), NextSteps: optional(nextSteps)}
}

// SetBooked records a booking without touching NextSteps.
func (r *Recorder) SetBooked(confirmationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Outcome.Booked = true
	r.rec.Outcome.ConfirmationID = optional(confirmationID)
}

func (r *Recorder) SetNextSteps(nextSteps string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Outcome.NextSteps = optional(nextSteps)
}

// Finalize stamps the end time once and returns a copy of the record.
func (r *Recorder) Finalize() Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec.EndedAt == nil {
		ended := r.now().UTC()
		r.rec.EndedAt = &ended
	}
	return r.snapshotLocked()
}

func (r *Recorder) Snapshot() Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Recorder) snapshotLocked() Record {
	out := r.rec
	out.Transcript = slices.Clone(r.rec.Transcript)
	out.Intents = slices.Clone(r.rec.Intents)
	out.ToolTrace = slices.Clone(r.rec.ToolTrace)
	out.Slots = maps.Clone(r.rec.Slots)
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
