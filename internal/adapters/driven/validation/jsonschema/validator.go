// Package jsonschema validates decoded model responses against a JSON
// Schema before the interpreter turns them into call plans.
package jsonschema

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// CallPlanSchema describes the object a model must return.
const CallPlanSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["endpoint", "method", "parameters", "confidence"],
  "properties": {
    "endpoint": {"type": "string", "minLength": 1},
    "method": {"type": "string", "pattern": "^[A-Za-z]+$"},
    "parameters": {"type": ["object", "null"]},
    "confidence": {"type": "number"},
    "reasoning": {"type": "string"},
    "fragment_ids": {"type": "array", "items": {"type": "string"}}
  }
}`

const schemaURL = "specfrag://schemas/call-plan.json"

// Ensure Validator implements the interface.
var _ driven.PlanValidator = (*Validator)(nil)

// Validator checks values against a compiled schema. It is safe for
// concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// NewCallPlanValidator compiles CallPlanSchema.
func NewCallPlanValidator() (*Validator, error) {
	return New(CallPlanSchema)
}

// New compiles a schema document.
func New(schemaJSON string) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate returns domain.ErrInvalidInput wrapping the violations, joined
// onto one line.
func (v *Validator) Validate(value any) error {
	err := v.schema.Validate(value)
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, flatten(err.Error()))
}

// flatten drops the header line of a validation report and joins the rest.
func flatten(report string) string {
	lines := strings.Split(report, "\n")
	if len(lines) > 1 {
		lines = lines[1:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimLeft(strings.TrimSpace(line), "- ")
	}
	return strings.Join(lines, "; ")
}
