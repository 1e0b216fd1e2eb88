package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Journal persists booking records. Calls happen while the store lock is held.
type Journal interface {
	Append(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	Load(ctx context.Context) ([]Record, error)
	Truncate(ctx context.Context) error
}

type JournalConfig struct {
	DSN         string        `envconfig:"DSN"`
	DialTimeout time.Duration `split_words:"true" default:"5s"`
}

func (c JournalConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

type bookingRow struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ConfirmationID  string    `bun:"confirmation_id,pk"`
	PatientFirst    string    `bun:"patient_first,notnull"`
	PatientLast     string    `bun:"patient_last,notnull"`
	PatientPhone    string    `bun:"patient_phone,notnull"`
	ResourceID      string    `bun:"resource_id,notnull"`
	SlotStart       time.Time `bun:"slot_start,notnull"`
	SlotEnd         time.Time `bun:"slot_end,notnull"`
	AppointmentType string    `bun:"appointment_type,notnull"`
	LocationID      string    `bun:"location_id,notnull"`
	IdempotencyKey  string    `bun:"idempotency_key,notnull,unique"`
	Status          string    `bun:"status,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

func rowFromRecord(rec Record) *bookingRow {
	return &bookingRow{
		ConfirmationID:  rec.ConfirmationID,
		PatientFirst:    rec.Patient.First,
		PatientLast:     rec.Patient.Last,
		PatientPhone:    rec.Patient.Phone,
		ResourceID:      rec.ResourceID,
		SlotStart:       rec.SlotStart,
		SlotEnd:         rec.SlotEnd,
		AppointmentType: rec.AppointmentType,
		LocationID:      rec.LocationID,
		IdempotencyKey:  rec.IdempotencyKey,
		Status:          string(rec.Status),
		CreatedAt:       rec.CreatedAt,
	}
}

func (r *bookingRow) record() Record {
	return Record{
		ConfirmationID:  r.ConfirmationID,
		Patient:         Patient{First: r.PatientFirst, Last: r.PatientLast, Phone: r.PatientPhone},
		ResourceID:      r.ResourceID,
		SlotStart:       r.SlotStart,
		SlotEnd:         r.SlotEnd,
		AppointmentType: r.AppointmentType,
		LocationID:      r.LocationID,
		IdempotencyKey:  r.IdempotencyKey,
		CreatedAt:       r.CreatedAt,
		Status:          Status(r.Status),
	}
}

// BunJournal stores bookings in a SQL table through bun.
type BunJournal struct {
	db *bun.DB
}

var _ Journal = (*BunJournal)(nil)

func NewBunJournal(db *bun.DB) (*BunJournal, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &BunJournal{db: db}, nil
}

// OpenPostgresJournal connects to Postgres with pgdriver.
func OpenPostgresJournal(cfg JournalConfig) (*BunJournal, error) {
	if !cfg.Enabled() {
		return nil, errors.New("booking journal dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	))
	return NewBunJournal(bun.NewDB(sqldb, pgdialect.New()))
}

func (j *BunJournal) CreateSchema(ctx context.Context) error {
	_, err := j.db.NewCreateTable().
		Model((*bookingRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create bookings table: %w", err)
	}
	return nil
}

func (j *BunJournal) Append(ctx context.Context, rec Record) error {
	if _, err := j.db.NewInsert().Model(rowFromRecord(rec)).Exec(ctx); err != nil {
		return fmt.Errorf("insert booking %s: %w", rec.ConfirmationID, err)
	}
	return nil
}

func (j *BunJournal) Update(ctx context.Context, rec Record) error {
	_, err := j.db.NewUpdate().
		Model(rowFromRecord(rec)).
		Column("status").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update booking %s: %w", rec.ConfirmationID, err)
	}
	return nil
}

func (j *BunJournal) Load(ctx context.Context) ([]Record, error) {
	var rows []bookingRow
	if err := j.db.NewSelect().Model(&rows).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].record())
	}
	return out, nil
}

func (j *BunJournal) Truncate(ctx context.Context) error {
	if _, err := j.db.NewTruncateTable().Model((*bookingRow)(nil)).Exec(ctx); err != nil {
		return fmt.Errorf("truncate bookings: %w", err)
	}
	return nil
}

func (j *BunJournal) Close() error {
	return j.db.Close()
}
