package tool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
)

const schemaBaseURL = "mem://tools/"

// Validator checks tool arguments against the compiled input schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	for name, doc := range inputSchemas {
		if err := compiler.AddResource(schemaBaseURL+name, strings.NewReader(doc)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(inputSchemas))}
	for name := range inputSchemas {
		compiled, err := compiler.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = compiled
	}
	return v, nil
}

func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateRaw decodes raw JSON arguments and validates them. Empty input is
// treated as an empty object.
func (v *Validator) ValidateRaw(tool string, raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: arguments are not valid JSON: %v", contractx.ErrValidation, err)
	}
	if err := v.validate(tool, doc); err != nil {
		return nil, err
	}
	args, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: arguments must be an object", contractx.ErrValidation)
	}
	return args, nil
}

// Validate checks already decoded arguments. Values are normalized through
// JSON first so Go-typed maps validate the same as wire input.
func (v *Validator) Validate(tool string, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: arguments are not serializable: %v", contractx.ErrValidation, err)
	}
	_, err = v.ValidateRaw(tool, raw)
	return err
}

func (v *Validator) validate(tool string, doc any) error {
	compiled, ok := v.schemas[tool]
	if !ok {
		return fmt.Errorf("%w: %s", contractx.ErrUnknownTool, tool)
	}
	if err := compiled.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s: %s", contractx.ErrValidation, tool, describe(verr))
		}
		return fmt.Errorf("%w: %s: %v", contractx.ErrValidation, tool, err)
	}
	return nil
}

// describe flattens the innermost causes into "location: message" pairs.
func describe(verr *jsonschema.ValidationError) string {
	var parts []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			parts = append(parts, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return strings.Join(parts, "; ")
}
