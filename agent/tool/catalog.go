package tool

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
)

const (
	ToolCheckInsuranceCoverage  = "check_insurance_coverage"
	ToolGetProviderAvailability = "get_provider_availability"
	ToolBookAppointment         = "book_appointment"
	ToolSendSMS                 = "send_sms"
)

// Names lists every tool the endpoint serves, in catalog order.
func Names() []string {
	return []string{
		ToolCheckInsuranceCoverage,
		ToolGetProviderAvailability,
		ToolBookAppointment,
		ToolSendSMS,
	}
}

func Known(tool string) bool {
	_, ok := inputSchemas[tool]
	return ok
}

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

// NewExecutor routes a validated call to its implementation in box.
func NewExecutor(box *Toolbox) Executor {
	fallback := DefaultExecutor()
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		switch tool {
		case ToolCheckInsuranceCoverage:
			return box.checkInsuranceCoverage(ctx, args)
		case ToolGetProviderAvailability:
			return box.getProviderAvailability(ctx, args)
		case ToolBookAppointment:
			return box.bookAppointment(ctx, args)
		case ToolSendSMS:
			return box.sendSMS(ctx, args)
		default:
			return fallback(ctx, tool, args)
		}
	}
}

func DefaultExecutor() Executor {
	return func(ctx context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("Unknown tool: %s", tool),
			Err:   fmt.Errorf("%w: %s", contractx.ErrUnknownTool, tool),
		}, nil
	}
}

// Infos describes the tools for model function calling.
func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolCheckInsuranceCoverage,
			Desc: "Check if a patient's insurance covers a dental procedure and get the copay estimate",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"payer":          {Type: schema.String, Desc: "Insurance company (e.g., Delta Dental, Cigna, Aetna)", Required: true},
				"plan":           {Type: schema.String, Desc: "Plan type (e.g., PPO, HMO, DMO)", Required: true},
				"procedure_code": {Type: schema.String, Desc: "Dental procedure code (e.g., D1110 for cleaning)", Required: true},
				"dob":            {Type: schema.String, Desc: "Patient date of birth YYYY-MM-DD"},
			}),
		},
		{
			Name: ToolGetProviderAvailability,
			Desc: "Get available appointment slots for a provider at a location",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"location_id": {Type: schema.String, Desc: "Location ID (loc-sj for San Jose, loc-sf for San Francisco, loc-oak for Oakland)", Required: true},
				"provider_id": {Type: schema.String, Desc: "Provider ID (default: prov-001)", Required: true},
				"date_range": {
					Type:     schema.Object,
					Desc:     "Inclusive date range to search",
					Required: true,
					SubParams: map[string]*schema.ParameterInfo{
						"start": {Type: schema.String, Desc: "Start date YYYY-MM-DD", Required: true},
						"end":   {Type: schema.String, Desc: "End date YYYY-MM-DD", Required: true},
					},
				},
				"appointment_type": {Type: schema.String, Desc: "Type of appointment (cleaning, checkup, etc.)", Required: true},
			}),
		},
		{
			Name: ToolBookAppointment,
			Desc: "Book an appointment for a patient. Requires patient info, slot, and idempotency key.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"patient": {
					Type:     schema.Object,
					Required: true,
					SubParams: map[string]*schema.ParameterInfo{
						"first": {Type: schema.String, Desc: "First name", Required: true},
						"last":  {Type: schema.String, Desc: "Last name", Required: true},
						"phone": {Type: schema.String, Desc: "Phone in E.164 format (+1XXXXXXXXXX)", Required: true},
					},
				},
				"provider_id": {Type: schema.String, Desc: "Provider ID", Required: true},
				"slot": {
					Type:     schema.Object,
					Required: true,
					SubParams: map[string]*schema.ParameterInfo{
						"start": {Type: schema.String, Desc: "Slot start YYYY-MM-DDTHH:MM:SS", Required: true},
						"end":   {Type: schema.String, Desc: "Slot end YYYY-MM-DDTHH:MM:SS", Required: true},
					},
				},
				"appointment_type": {Type: schema.String, Desc: "Type of appointment", Required: true},
				"location_id":      {Type: schema.String, Desc: "Location ID", Required: true},
				"idempotency_key":  {Type: schema.String, Desc: "Unique key so a retried booking is not duplicated", Required: true},
			}),
		},
		{
			Name: ToolSendSMS,
			Desc: "Send an SMS confirmation to the patient",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"to":      {Type: schema.String, Desc: "Phone number in E.164 format", Required: true},
				"message": {Type: schema.String, Desc: "Message text (max 1600 chars)", Required: true},
			}),
		},
	}
}

// Description returns the catalog description of tool.
func Description(tool string) string {
	for _, info := range Infos() {
		if info.Name == tool {
			return info.Desc
		}
	}
	return ""
}
