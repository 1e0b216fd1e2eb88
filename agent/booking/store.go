package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
)

const maxIDAttempts = 16

type Option func(*Store)

// WithJournal makes every create and cancel durable before it becomes visible.
func WithJournal(j Journal) Option {
	return func(s *Store) {
		s.journal = j
	}
}

func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store decides booking attempts. One mutex guards the idempotency index, the
// slot index and the records together so the whole decision is atomic.
type Store struct {
	mu          sync.Mutex
	bookings    map[string]*Record
	idempotency map[string]string
	slots       map[slotKey]string

	journal Journal
	newID   func() (string, error)
	now     func() time.Time
	logger  zerolog.Logger
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		bookings:    map[string]*Record{},
		idempotency: map[string]string{},
		slots:       map[slotKey]string{},
		newID:       newConfirmationID,
		now:         time.Now,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create applies the idempotency check, then the slot check, then inserts.
// A failed attempt never records its idempotency key.
func (s *Store) Create(ctx context.Context, req Request) Result {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return Result{
			Status: StatusFailed,
			Reason: "idempotency key is required",
			Err:    fmt.Errorf("%w: idempotency key is required", contractx.ErrValidation),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.idempotency[key]; ok {
		s.logger.Info().Str("confirmation_id", id).Str("idempotency_key", key).Msg("booking_duplicate")
		return Result{ConfirmationID: id, Status: StatusBooked, Reason: ReasonDuplicate}
	}

	sk := keyOf(req.ResourceID, req.SlotStart)
	if _, taken := s.slots[sk]; taken {
		s.logger.Info().
			Str("provider_id", req.ResourceID).
			Time("slot_start", req.SlotStart).
			Msg("booking_conflict")
		return Result{Status: StatusFailed, Reason: ReasonUnavailable, Err: ErrSlotUnavailable}
	}

	id, err := s.uniqueIDLocked()
	if err != nil {
		return Result{Status: StatusFailed, Reason: "could not allocate confirmation id", Err: err}
	}

	rec := &Record{
		ConfirmationID:  id,
		Patient:         req.Patient,
		ResourceID:      req.ResourceID,
		SlotStart:       req.SlotStart,
		SlotEnd:         req.SlotEnd,
		AppointmentType: req.AppointmentType,
		LocationID:      req.LocationID,
		IdempotencyKey:  key,
		CreatedAt:       s.now().UTC(),
		Status:          StatusBooked,
	}

	if s.journal != nil {
		if err := s.journal.Append(ctx, *rec); err != nil {
			s.logger.Error().Err(err).Str("confirmation_id", id).Msg("booking_journal_failed")
			return Result{Status: StatusFailed, Reason: "booking could not be saved", Err: err}
		}
	}

	s.bookings[id] = rec
	s.idempotency[key] = id
	s.slots[sk] = id

	s.logger.Info().
		Str("confirmation_id", id).
		Str("provider_id", req.ResourceID).
		Time("slot_start", req.SlotStart).
		Msg("booking_created")
	return Result{ConfirmationID: id, Status: StatusBooked}
}

func (s *Store) uniqueIDLocked() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := s.newID()
		if err != nil {
			return "", err
		}
		if _, exists := s.bookings[id]; !exists {
			return id, nil
		}
	}
	return "", errors.New("confirmation id space exhausted")
}

func (s *Store) Get(confirmationID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.bookings[confirmationID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Cancel releases the slot of a booked record. The idempotency key keeps
// pointing at the cancelled record.
func (s *Store) Cancel(ctx context.Context, confirmationID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.bookings[confirmationID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, confirmationID)
	}
	if rec.Status == StatusCancelled {
		return *rec, nil
	}

	updated := *rec
	updated.Status = StatusCancelled
	if s.journal != nil {
		if err := s.journal.Update(ctx, updated); err != nil {
			return *rec, err
		}
	}

	rec.Status = StatusCancelled
	delete(s.slots, keyOf(rec.ResourceID, rec.SlotStart))
	s.logger.Info().Str("confirmation_id", confirmationID).Msg("booking_cancelled")
	return *rec, nil
}

// List returns every record ordered by creation time.
func (s *Store) List() []Record {
	s.mu.Lock()
	out := make([]Record, 0, len(s.bookings))
	for _, rec := range s.bookings {
		out = append(out, *rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ConfirmationID < out[j].ConfirmationID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// SlotTaken reports whether an active booking holds the slot.
func (s *Store) SlotTaken(resourceID string, start time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, taken := s.slots[keyOf(resourceID, start)]
	return taken
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

// Restore replaces the in-memory state with the journal contents.
func (s *Store) Restore(ctx context.Context) error {
	if s.journal == nil {
		return nil
	}
	records, err := s.journal.Load(ctx)
	if err != nil {
		return fmt.Errorf("load booking journal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	for i := range records {
		rec := records[i]
		s.bookings[rec.ConfirmationID] = &rec
		s.idempotency[rec.IdempotencyKey] = rec.ConfirmationID
		if rec.Status == StatusBooked {
			s.slots[keyOf(rec.ResourceID, rec.SlotStart)] = rec.ConfirmationID
		}
	}
	s.logger.Info().Int("bookings", len(records)).Msg("booking_store_restored")
	return nil
}

// Reset drops every record, idempotency key and slot in one step.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.Truncate(ctx); err != nil {
			return err
		}
	}
	s.clearLocked()
	return nil
}

func (s *Store) clearLocked() {
	s.bookings = map[string]*Record{}
	s.idempotency = map[string]string{}
	s.slots = map[slotKey]string{}
}
