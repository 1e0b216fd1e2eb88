package booking

import (
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
)

type Status string

const (
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

const (
	ReasonDuplicate   = "Idempotent request - returning existing booking"
	ReasonUnavailable = "This time slot is no longer available"
)

var (
	ErrSlotUnavailable = fmt.Errorf("%w: this time slot is no longer available", contractx.ErrConflict)
	ErrNotFound        = errors.New("booking not found")
)

type Patient struct {
	First string `json:"first"`
	Last  string `json:"last"`
	Phone string `json:"phone"`
}

type Request struct {
	Patient         Patient
	ResourceID      string
	SlotStart       time.Time
	SlotEnd         time.Time
	AppointmentType string
	LocationID      string
	IdempotencyKey  string
}

type Record struct {
	ConfirmationID  string    `json:"confirmation_id"`
	Patient         Patient   `json:"patient"`
	ResourceID      string    `json:"provider_id"`
	SlotStart       time.Time `json:"slot_start"`
	SlotEnd         time.Time `json:"slot_end"`
	AppointmentType string    `json:"appointment_type"`
	LocationID      string    `json:"location_id"`
	IdempotencyKey  string    `json:"idempotency_key"`
	CreatedAt       time.Time `json:"created_at"`
	Status          Status    `json:"status"`
}

type Result struct {
	ConfirmationID string `json:"confirmation_id"`
	Status         Status `json:"status"`
	Reason         string `json:"reason,omitempty"`
	Err            error  `json:"-"`
}

// slotKey identifies a bookable window; at most one active record may hold it.
type slotKey struct {
	resourceID string
	start      int64
}

func keyOf(resourceID string, start time.Time) slotKey {
	return slotKey{resourceID: resourceID, start: start.UnixNano()}
}
