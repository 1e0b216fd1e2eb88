package runtime

import (
	"context"
	"strings"

	auditx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/audit"
	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
	toolx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/tool"
)

var toolIntents = map[string]string{
	toolx.ToolCheckInsuranceCoverage:  "coverage_check",
	toolx.ToolGetProviderAvailability: "check_availability",
	toolx.ToolBookAppointment:         "book_appointment",
	toolx.ToolSendSMS:                 "send_sms",
}

// Call is the audited scope of one voice call. Tool invocations made through
// it land in the call's tool trace.
type Call struct {
	rt  *Runtime
	rec *auditx.Recorder
}

func (c *Call) ID() string {
	return c.rec.CallID()
}

func (c *Call) Recorder() *auditx.Recorder {
	return c.rec
}

// IdempotencyKey derives a key that is stable for this call and parts, so a
// retried booking within the call replays instead of double-booking.
func (c *Call) IdempotencyKey(parts ...string) string {
	return strings.Join(append([]string{c.ID()}, parts...), "-")
}

func (c *Call) Tool(ctx context.Context, name string, args map[string]any) contractx.ToolResult {
	started := c.rt.now()
	res := c.rt.Call(ctx, name, args)
	elapsed := c.rt.now().Sub(started)

	output := res.Result
	if !res.OK() {
		output = map[string]any{"error": res.Error}
	}
	c.rec.AddToolTrace(auditx.ToolTrace{
		Tool:       name,
		Input:      args,
		Output:     output,
		OK:         res.OK(),
		DurationMs: float64(elapsed.Microseconds()) / 1000,
		Error:      res.Error,
	})
	if intent, ok := toolIntents[name]; ok {
		c.rec.AddIntent(intent)
	}

	if res.OK() {
		switch name {
		case toolx.ToolBookAppointment:
			if status, _ := res.Result["status"].(string); status == "booked" {
				id, _ := res.Result["confirmation_id"].(string)
				c.rec.SetBooked(id)
			}
		case toolx.ToolSendSMS:
			if queued, _ := res.Result["queued"].(bool); queued {
				c.rec.SetNextSteps("SMS sent")
			}
		}
	}
	return res
}

func (c *Call) AddIntent(intent string) {
	c.rec.AddIntent(intent)
}

func (c *Call) AddTranscript(role, text string) {
	c.rec.AddTranscript(role, text)
}

func (c *Call) SetSlot(name, value string, confidence float64) {
	c.rec.SetSlot(name, value, confidence)
}

func (c *Call) SetOutcome(booked bool, confirmationID, nextSteps string) {
	c.rec.SetOutcome(booked, confirmationID, nextSteps)
}

// Finish stamps the end time and saves the record.
func (c *Call) Finish(ctx context.Context) (auditx.Record, error) {
	c.rec.AddIntent("end_call")
	rec := c.rec.Finalize()
	if err := c.rt.audit.Save(ctx, &rec); err != nil {
		c.rt.logger.Error().Err(err).Str("call_id", rec.CallID).Msg("audit_save_failed")
		return rec, err
	}
	c.rt.logger.Info().Str("call_id", rec.CallID).Int("tool_calls", len(rec.ToolTrace)).Msg("call_ended")
	return rec, nil
}
