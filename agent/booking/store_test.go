package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
)

var slotNine = time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC)

func newTestStore(opts ...Option) *Store {
	return NewStore(append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
}

func bookingRequest(key string, start time.Time) Request {
	return Request{
		Patient:         Patient{First: "Ana", Last: "Lopez", Phone: "+14085551234"},
		ResourceID:      "prov-001",
		SlotStart:       start,
		SlotEnd:         start.Add(30 * time.Minute),
		AppointmentType: "cleaning",
		LocationID:      "loc-sj",
		IdempotencyKey:  key,
	}
}

func TestCreateBooksFreeSlot(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	res := store.Create(context.Background(), bookingRequest("k1", slotNine))

	require.Equal(t, StatusBooked, res.Status)
	require.NoError(t, res.Err)
	assert.Empty(t, res.Reason)
	assert.True(t, ValidConfirmationID(res.ConfirmationID), "id %q", res.ConfirmationID)

	rec, ok := store.Get(res.ConfirmationID)
	require.True(t, ok)
	assert.Equal(t, "prov-001", rec.ResourceID)
	assert.Equal(t, "k1", rec.IdempotencyKey)
	assert.Equal(t, StatusBooked, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestCreateIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("same key returns same id and keeps one record", prop.ForAll(
		func(key, first, otherFirst string, hourOffset int) bool {
			store := newTestStore()
			req := bookingRequest(key, slotNine)
			req.Patient.First = first
			a := store.Create(context.Background(), req)

			again := bookingRequest(key, slotNine.Add(time.Duration(hourOffset)*time.Hour))
			again.Patient.First = otherFirst
			b := store.Create(context.Background(), again)

			return a.Status == StatusBooked &&
				b.Status == StatusBooked &&
				a.ConfirmationID == b.ConfirmationID &&
				b.Reason == ReasonDuplicate &&
				store.Len() == 1
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, 48),
	))

	properties.TestingRun(t)
}

func TestCreateRejectsTakenSlot(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	first := store.Create(context.Background(), bookingRequest("k1", slotNine))
	require.Equal(t, StatusBooked, first.Status)

	second := store.Create(context.Background(), bookingRequest("k2", slotNine))
	assert.Equal(t, StatusFailed, second.Status)
	assert.Empty(t, second.ConfirmationID)
	assert.Contains(t, second.Reason, "no longer available")
	assert.ErrorIs(t, second.Err, contractx.ErrConflict)
	assert.Equal(t, 1, store.Len())

	// the failed key stays usable for another slot
	third := store.Create(context.Background(), bookingRequest("k2", slotNine.Add(time.Hour)))
	assert.Equal(t, StatusBooked, third.Status)
	assert.NotEqual(t, first.ConfirmationID, third.ConfirmationID)
}

func TestCreateIdempotencyWinsOverConflict(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	first := store.Create(context.Background(), bookingRequest("k1", slotNine))
	store.Create(context.Background(), bookingRequest("k2", slotNine))

	replay := store.Create(context.Background(), bookingRequest("k1", slotNine))
	assert.Equal(t, StatusBooked, replay.Status)
	assert.Equal(t, first.ConfirmationID, replay.ConfirmationID)
}

func TestCreateRequiresIdempotencyKey(t *testing.T) {
	t.Parallel()

	res := newTestStore().Create(context.Background(), bookingRequest("  ", slotNine))
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, contractx.ErrValidation)
}

func TestConcurrentCreateSameSlotHasOneWinner(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	const callers = 64

	var (
		mu      sync.Mutex
		results []Result
	)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		key := fmt.Sprintf("key-%d", i)
		g.Go(func() error {
			res := store.Create(context.Background(), bookingRequest(key, slotNine))
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	booked := 0
	for _, res := range results {
		switch res.Status {
		case StatusBooked:
			booked++
		case StatusFailed:
			assert.Equal(t, ReasonUnavailable, res.Reason)
		}
	}
	assert.Equal(t, 1, booked)
	assert.Equal(t, 1, store.Len())
}

func TestConfirmationIDAlphabet(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("ids are 6 chars without 0 O 1 I", prop.ForAll(
		func(_ int) bool {
			id, err := newConfirmationID()
			if err != nil || len(id) != 6 {
				return false
			}
			for _, r := range id {
				if r == '0' || r == 'O' || r == '1' || r == 'I' {
					return false
				}
			}
			return ValidConfirmationID(id)
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestValidConfirmationID(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidConfirmationID("ABC234"))
	assert.False(t, ValidConfirmationID("ABC23"))
	assert.False(t, ValidConfirmationID("ABCO23"))
	assert.False(t, ValidConfirmationID("abc234"))
	assert.False(t, ValidConfirmationID("ABC210"))
}

func TestCreateRetriesIDCollisions(t *testing.T) {
	t.Parallel()

	ids := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	var n int
	store := newTestStore(WithIDGenerator(func() (string, error) {
		id := ids[n]
		n++
		return id, nil
	}))

	a := store.Create(context.Background(), bookingRequest("k1", slotNine))
	b := store.Create(context.Background(), bookingRequest("k2", slotNine.Add(time.Hour)))
	assert.Equal(t, "AAAAAA", a.ConfirmationID)
	assert.Equal(t, "BBBBBB", b.ConfirmationID)
}

func TestCancelFreesSlot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore()
	first := store.Create(ctx, bookingRequest("k1", slotNine))
	assert.True(t, store.SlotTaken("prov-001", slotNine))

	rec, err := store.Cancel(ctx, first.ConfirmationID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, rec.Status)
	assert.False(t, store.SlotTaken("prov-001", slotNine))

	_, err = store.Cancel(ctx, first.ConfirmationID)
	require.NoError(t, err)

	again := store.Create(ctx, bookingRequest("k2", slotNine))
	assert.Equal(t, StatusBooked, again.Status)

	replay := store.Create(ctx, bookingRequest("k1", slotNine))
	assert.Equal(t, first.ConfirmationID, replay.ConfirmationID)

	_, err = store.Cancel(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetClearsEverything(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore()
	first := store.Create(ctx, bookingRequest("k1", slotNine))
	require.NoError(t, store.Reset(ctx))

	assert.Zero(t, store.Len())
	_, ok := store.Get(first.ConfirmationID)
	assert.False(t, ok)

	again := store.Create(ctx, bookingRequest("k1", slotNine))
	assert.Equal(t, StatusBooked, again.Status)
	assert.Empty(t, again.Reason)
}

type memoryJournal struct {
	mu        sync.Mutex
	records   map[string]Record
	appendErr error
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{records: map[string]Record{}}
}

func (j *memoryJournal) Append(ctx context.Context, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.appendErr != nil {
		return j.appendErr
	}
	j.records[rec.ConfirmationID] = rec
	return nil
}

func (j *memoryJournal) Update(ctx context.Context, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[rec.ConfirmationID] = rec
	return nil
}

func (j *memoryJournal) Load(ctx context.Context) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Record, 0, len(j.records))
	for _, rec := range j.records {
		out = append(out, rec)
	}
	return out, nil
}

func (j *memoryJournal) Truncate(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = map[string]Record{}
	return nil
}

func TestJournalFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	journal := newMemoryJournal()
	journal.appendErr = errors.New("db down")
	store := newTestStore(WithJournal(journal))

	res := store.Create(context.Background(), bookingRequest("k1", slotNine))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Zero(t, store.Len())

	journal.appendErr = nil
	res = store.Create(context.Background(), bookingRequest("k1", slotNine))
	assert.Equal(t, StatusBooked, res.Status)
	assert.Empty(t, res.Reason)
}

func TestRestoreRebuildsIndexes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var (
		clockMu sync.Mutex
		ticks   int
	)
	tick := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		ticks++
		return slotNine.Add(time.Duration(ticks) * time.Second)
	}
	journal := newMemoryJournal()
	original := newTestStore(WithJournal(journal), WithClock(tick))
	booked := original.Create(ctx, bookingRequest("k1", slotNine))
	cancelled := original.Create(ctx, bookingRequest("k2", slotNine.Add(time.Hour)))
	_, err := original.Cancel(ctx, cancelled.ConfirmationID)
	require.NoError(t, err)

	restored := newTestStore(WithJournal(journal), WithClock(tick))
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, 2, restored.Len())

	replay := restored.Create(ctx, bookingRequest("k1", slotNine))
	assert.Equal(t, booked.ConfirmationID, replay.ConfirmationID)

	conflict := restored.Create(ctx, bookingRequest("k3", slotNine))
	assert.Equal(t, StatusFailed, conflict.Status)

	freed := restored.Create(ctx, bookingRequest("k4", slotNine.Add(time.Hour)))
	assert.Equal(t, StatusBooked, freed.Status)

	records := restored.List()
	require.Len(t, records, 3)
	assert.Equal(t, booked.ConfirmationID, records[0].ConfirmationID)
}
