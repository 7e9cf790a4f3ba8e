// Package validation checks API request bodies against JSON schemas
// before they are decoded.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "github.com/ruralcare/carenav/internal/errors"
)

// Body names one of the request body schemas.
type Body string

const (
	FilterBody Body = "filter"
	SearchBody Body = "search"
	SelectBody Body = "select"
	ScoresBody Body = "scores"
	UIBody     Body = "ui"
)

var schemaSources = map[Body]string{
	FilterBody: `{
		"type": "object",
		"properties": {
			"specialist": {"type": "string", "maxLength": 100},
			"distance":   {"type": "string", "maxLength": 32}
		},
		"additionalProperties": false
	}`,
	SearchBody: `{
		"type": "object",
		"properties": {
			"zip": {"type": "string", "maxLength": 32}
		},
		"required": ["zip"],
		"additionalProperties": false
	}`,
	SelectBody: `{
		"type": "object",
		"properties": {
			"id": {"type": "string", "minLength": 1, "maxLength": 512}
		},
		"required": ["id"],
		"additionalProperties": false
	}`,
	ScoresBody: `{
		"type": "object",
		"properties": {
			"scores": {
				"type": "array",
				"minItems": 1,
				"maxItems": 64,
				"items": {"type": "number", "minimum": 0, "maximum": 1}
			}
		},
		"required": ["scores"],
		"additionalProperties": false
	}`,
	UIBody: `{
		"type": "object",
		"properties": {
			"scrollLocked": {"type": "boolean"},
			"finderHelp":   {"type": "boolean"},
			"symptomHelp":  {"type": "boolean"}
		},
		"additionalProperties": false
	}`,
}

// Validator holds the compiled schemas.
type Validator struct {
	schemas map[Body]*gojsonschema.Schema
}

func New() (*Validator, error) {
	v := &Validator{schemas: make(map[Body]*gojsonschema.Schema, len(schemaSources))}
	for name, src := range schemaSources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

// Validate checks a raw JSON body. Failures are INVALID_INPUT errors
// listing every violation.
func (v *Validator) Validate(body Body, data []byte) error {
	schema, ok := v.schemas[body]
	if !ok {
		return fmt.Errorf("unknown schema %q", body)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("malformed JSON: %v", err))
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return apperrors.NewInvalidInputError(strings.Join(errs, "; "))
	}
	return nil
}
