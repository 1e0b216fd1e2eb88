package tool

import "encoding/json"

const (
	phonePattern = `^\\+1\\d{10}$`
	datePattern  = `^\\d{4}-\\d{2}-\\d{2}$`
)

// inputSchemas are the wire contracts, shared by the endpoint and its callers.
var inputSchemas = map[string]string{
	ToolCheckInsuranceCoverage: `{
		"type": "object",
		"properties": {
			"payer": {"type": "string", "minLength": 1},
			"plan": {"type": "string", "minLength": 1},
			"procedure_code": {"type": "string", "minLength": 1},
			"dob": {"type": ["string", "null"]}
		},
		"required": ["payer", "plan", "procedure_code"]
	}`,
	ToolGetProviderAvailability: `{
		"type": "object",
		"properties": {
			"location_id": {"type": "string", "minLength": 1},
			"provider_id": {"type": "string", "minLength": 1},
			"date_range": {
				"type": "object",
				"properties": {
					"start": {"type": "string", "pattern": "` + datePattern + `"},
					"end": {"type": "string", "pattern": "` + datePattern + `"}
				},
				"required": ["start", "end"]
			},
			"appointment_type": {"type": "string", "minLength": 1}
		},
		"required": ["location_id", "provider_id", "date_range", "appointment_type"]
	}`,
	ToolBookAppointment: `{
		"type": "object",
		"properties": {
			"patient": {
				"type": "object",
				"properties": {
					"first": {"type": "string", "minLength": 1},
					"last": {"type": "string", "minLength": 1},
					"phone": {"type": "string", "pattern": "` + phonePattern + `"}
				},
				"required": ["first", "last", "phone"]
			},
			"provider_id": {"type": "string"},
			"slot": {
				"type": "object",
				"properties": {
					"start": {"type": "string"},
					"end": {"type": "string"}
				},
				"required": ["start", "end"]
			},
			"appointment_type": {"type": "string"},
			"location_id": {"type": "string"},
			"idempotency_key": {"type": "string", "minLength": 1}
		},
		"required": ["patient", "provider_id", "slot", "appointment_type", "location_id", "idempotency_key"]
	}`,
	ToolSendSMS: `{
		"type": "object",
		"properties": {
			"to": {"type": "string", "pattern": "` + phonePattern + `"},
			"message": {"type": "string", "minLength": 1, "maxLength": 1600}
		},
		"required": ["to", "message"]
	}`,
}

// InputSchema returns the JSON Schema document for tool, or nil when unknown.
func InputSchema(tool string) json.RawMessage {
	s, ok := inputSchemas[tool]
	if !ok {
		return nil
	}
	return json.RawMessage(s)
}
