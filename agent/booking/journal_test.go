package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func newMockJournal(t *testing.T) (*BunJournal, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close() })

	journal, err := NewBunJournal(bun.NewDB(sqldb, pgdialect.New()))
	require.NoError(t, err)
	return journal, mock
}

func sampleRecord() Record {
	return Record{
		ConfirmationID:  "ABC234",
		Patient:         Patient{First: "Ana", Last: "Lopez", Phone: "+14085551234"},
		ResourceID:      "prov-001",
		SlotStart:       slotNine,
		SlotEnd:         slotNine.Add(time.Hour),
		AppointmentType: "cleaning",
		LocationID:      "loc-sj",
		IdempotencyKey:  "k1",
		CreatedAt:       slotNine.Add(-24 * time.Hour),
		Status:          StatusBooked,
	}
}

func TestNewBunJournalRequiresDB(t *testing.T) {
	t.Parallel()

	_, err := NewBunJournal(nil)
	assert.Error(t, err)

	_, err = OpenPostgresJournal(JournalConfig{})
	assert.Error(t, err)
}

func TestBunJournalAppendInsertsRow(t *testing.T) {
	t.Parallel()

	journal, mock := newMockJournal(t)
	mock.ExpectExec(`INSERT INTO "bookings"`).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, journal.Append(context.Background(), sampleRecord()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunJournalAppendWrapsError(t *testing.T) {
	t.Parallel()

	journal, mock := newMockJournal(t)
	mock.ExpectExec(`INSERT INTO "bookings"`).WillReturnError(errors.New("duplicate key"))

	err := journal.Append(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert booking ABC234")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunJournalUpdateStatus(t *testing.T) {
	t.Parallel()

	journal, mock := newMockJournal(t)
	mock.ExpectExec(`UPDATE "bookings"`).WillReturnResult(sqlmock.NewResult(0, 1))

	rec := sampleRecord()
	rec.Status = StatusCancelled
	require.NoError(t, journal.Update(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunJournalLoadScansRows(t *testing.T) {
	t.Parallel()

	journal, mock := newMockJournal(t)
	rec := sampleRecord()
	rows := sqlmock.NewRows([]string{
		"confirmation_id", "patient_first", "patient_last", "patient_phone", "resource_id",
		"slot_start", "slot_end", "appointment_type", "location_id", "idempotency_key",
		"status", "created_at",
	}).AddRow(
		rec.ConfirmationID, rec.Patient.First, rec.Patient.Last, rec.Patient.Phone, rec.ResourceID,
		rec.SlotStart, rec.SlotEnd, rec.AppointmentType, rec.LocationID, rec.IdempotencyKey,
		string(rec.Status), rec.CreatedAt,
	)
	mock.ExpectQuery(`SELECT .* FROM "bookings" AS "b"`).WillReturnRows(rows)

	got, err := journal.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ConfirmationID, got[0].ConfirmationID)
	assert.Equal(t, rec.Patient, got[0].Patient)
	assert.Equal(t, StatusBooked, got[0].Status)
	assert.True(t, rec.SlotStart.Equal(got[0].SlotStart))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunJournalTruncate(t *testing.T) {
	t.Parallel()

	journal, mock := newMockJournal(t)
	mock.ExpectExec(`TRUNCATE TABLE "bookings"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, journal.Truncate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunJournalCreateSchema(t *testing.T) {
	t.Parallel()

	journal, mock := newMockJournal(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "bookings"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, journal.CreateSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWithBunJournal(t *testing.T) {
	t.Parallel()

	journal, mock := newMockJournal(t)
	mock.ExpectExec(`INSERT INTO "bookings"`).WillReturnResult(sqlmock.NewResult(0, 1))

	store := newTestStore(WithJournal(journal))
	res := store.Create(context.Background(), bookingRequest("k1", slotNine))
	require.Equal(t, StatusBooked, res.Status)

	replay := store.Create(context.Background(), bookingRequest("k1", slotNine))
	assert.Equal(t, res.ConfirmationID, replay.ConfirmationID)
	require.NoError(t, mock.ExpectationsWereMet())
}
