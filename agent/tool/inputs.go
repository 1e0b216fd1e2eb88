package tool

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
	fixturex "github.com/tanpawarit/Resilient-Tool-Gateway/agent/fixture"
)

const dateLayout = "2006-01-02"

type CheckInsuranceCoverageInput struct {
	Payer         string  `mapstructure:"payer"`
	Plan          string  `mapstructure:"plan"`
	ProcedureCode string  `mapstructure:"procedure_code"`
	DOB           *string `mapstructure:"dob"`
}

type DateRange struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type GetProviderAvailabilityInput struct {
	LocationID      string    `mapstructure:"location_id"`
	ProviderID      string    `mapstructure:"provider_id"`
	DateRange       DateRange `mapstructure:"date_range"`
	AppointmentType string    `mapstructure:"appointment_type"`
}

type PatientInput struct {
	First string `mapstructure:"first"`
	Last  string `mapstructure:"last"`
	Phone string `mapstructure:"phone"`
}

type SlotInput struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type BookAppointmentInput struct {
	Patient         PatientInput `mapstructure:"patient"`
	ProviderID      string       `mapstructure:"provider_id"`
	Slot            SlotInput    `mapstructure:"slot"`
	AppointmentType string       `mapstructure:"appointment_type"`
	LocationID      string       `mapstructure:"location_id"`
	IdempotencyKey  string       `mapstructure:"idempotency_key"`
}

type SendSMSInput struct {
	To      string `mapstructure:"to"`
	Message string `mapstructure:"message"`
}

// decodeArgs copies validated arguments into a typed input. Unknown keys are
// ignored the same way the schemas allow them.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	return nil
}

// parseSlotTime accepts the wall-clock layout produced by availability and
// RFC 3339 timestamps. Offsets and fractional seconds are dropped so every
// accepted form of one wall clock keys the same slot.
func parseSlotTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(fixturex.SlotLayout, s, time.UTC); err == nil {
		return t.Truncate(time.Second), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid slot time %q", contractx.ErrValidation, s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", contractx.ErrValidation, s)
	}
	return t, nil
}

func last4(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}
