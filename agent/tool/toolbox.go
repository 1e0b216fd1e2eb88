package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	bookingx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/booking"
	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
	fixturex "github.com/tanpawarit/Resilient-Tool-Gateway/agent/fixture"
)

type Option func(*Toolbox)

func WithSMSSender(sender SMSSender) Option {
	return func(b *Toolbox) {
		if sender != nil {
			b.sms = sender
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Toolbox) {
		b.logger = logger
	}
}

// Toolbox holds the state behind the four tools.
type Toolbox struct {
	catalog  *fixturex.Catalog
	bookings *bookingx.Store
	sms      SMSSender
	logger   zerolog.Logger
}

func NewToolbox(catalog *fixturex.Catalog, bookings *bookingx.Store, opts ...Option) (*Toolbox, error) {
	if catalog == nil {
		return nil, errors.New("fixture catalog is required")
	}
	if bookings == nil {
		return nil, errors.New("booking store is required")
	}

	box := &Toolbox{
		catalog:  catalog,
		bookings: bookings,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(box)
		}
	}
	if box.sms == nil {
		box.sms = NewOutbox()
	}
	return box, nil
}

func (b *Toolbox) Bookings() *bookingx.Store {
	return b.bookings
}

func (b *Toolbox) SMS() SMSSender {
	return b.sms
}

func (b *Toolbox) checkInsuranceCoverage(_ context.Context, args map[string]any) (contractx.ToolResult, error) {
	var in CheckInsuranceCoverageInput
	if err := decodeArgs(args, &in); err != nil {
		return contractx.Failure(ToolCheckInsuranceCoverage, err), nil
	}

	cov := b.catalog.CheckCoverage(in.Payer, in.Plan, in.ProcedureCode)
	b.logger.Info().
		Str("payer", in.Payer).
		Str("plan", in.Plan).
		Str("procedure_code", in.ProcedureCode).
		Bool("covered", cov.Covered).
		Msg("check_insurance_coverage")

	payload := map[string]any{
		"covered":        cov.Covered,
		"copay_estimate": cov.CopayEstimate,
	}
	if cov.Notes != "" {
		payload["notes"] = cov.Notes
	}
	return contractx.Success(ToolCheckInsuranceCoverage, payload), nil
}

func (b *Toolbox) getProviderAvailability(_ context.Context, args map[string]any) (contractx.ToolResult, error) {
	var in GetProviderAvailabilityInput
	if err := decodeArgs(args, &in); err != nil {
		return contractx.Failure(ToolGetProviderAvailability, err), nil
	}

	empty := contractx.Success(ToolGetProviderAvailability, map[string]any{"slots": []any{}})
	if _, ok := b.catalog.Provider(in.ProviderID); !ok {
		b.logger.Warn().Str("provider_id", in.ProviderID).Msg("provider_not_found")
		return empty, nil
	}
	if _, ok := b.catalog.Location(in.LocationID); !ok {
		b.logger.Warn().Str("location_id", in.LocationID).Msg("location_not_found")
		return empty, nil
	}

	start, err := parseDate(in.DateRange.Start)
	if err != nil {
		return contractx.Failure(ToolGetProviderAvailability, err), nil
	}
	end, err := parseDate(in.DateRange.End)
	if err != nil {
		return contractx.Failure(ToolGetProviderAvailability, err), nil
	}

	slots := make([]any, 0)
	for _, slot := range b.catalog.AvailabilitySlots(in.LocationID, in.ProviderID, start, end, in.AppointmentType) {
		if slotStart, err := parseSlotTime(slot.Start); err == nil && b.bookings.SlotTaken(in.ProviderID, slotStart) {
			continue
		}
		slots = append(slots, map[string]any{"start": slot.Start, "end": slot.End})
	}

	b.logger.Info().
		Str("provider_id", in.ProviderID).
		Str("location_id", in.LocationID).
		Int("slots_found", len(slots)).
		Msg("get_provider_availability")
	return contractx.Success(ToolGetProviderAvailability, map[string]any{"slots": slots}), nil
}

func (b *Toolbox) bookAppointment(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	var in BookAppointmentInput
	if err := decodeArgs(args, &in); err != nil {
		return contractx.Failure(ToolBookAppointment, err), nil
	}

	start, err := parseSlotTime(in.Slot.Start)
	if err != nil {
		return contractx.Failure(ToolBookAppointment, err), nil
	}
	end, err := parseSlotTime(in.Slot.End)
	if err != nil {
		return contractx.Failure(ToolBookAppointment, err), nil
	}
	if !end.After(start) {
		return contractx.Failure(ToolBookAppointment,
			fmt.Errorf("%w: slot end must be after slot start", contractx.ErrValidation)), nil
	}

	res := b.bookings.Create(ctx, bookingx.Request{
		Patient: bookingx.Patient{
			First: in.Patient.First,
			Last:  in.Patient.Last,
			Phone: in.Patient.Phone,
		},
		ResourceID:      in.ProviderID,
		SlotStart:       start,
		SlotEnd:         end,
		AppointmentType: in.AppointmentType,
		LocationID:      in.LocationID,
		IdempotencyKey:  in.IdempotencyKey,
	})

	b.logger.Info().
		Str("confirmation_id", res.ConfirmationID).
		Str("status", string(res.Status)).
		Str("patient_phone_last4", last4(in.Patient.Phone)).
		Msg("book_appointment")

	payload := map[string]any{
		"confirmation_id": res.ConfirmationID,
		"status":          string(res.Status),
	}
	if res.Reason != "" {
		payload["reason"] = res.Reason
	}
	return contractx.Success(ToolBookAppointment, payload), nil
}

func (b *Toolbox) sendSMS(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	var in SendSMSInput
	if err := decodeArgs(args, &in); err != nil {
		return contractx.Failure(ToolSendSMS, err), nil
	}

	id, err := b.sms.Send(ctx, in.To, in.Message)
	if err != nil {
		b.logger.Error().Err(err).Str("to_last4", last4(in.To)).Msg("sms_send_failed")
		return contractx.Success(ToolSendSMS, map[string]any{"queued": false}), nil
	}

	b.logger.Info().Str("message_id", id).Str("to_last4", last4(in.To)).Msg("sms_queued")
	return contractx.Success(ToolSendSMS, map[string]any{"queued": true, "message_id": id}), nil
}
