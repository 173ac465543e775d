package services

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/flowdesk/pkg/models"
)

// kickoffSchema builds a JSON Schema document from the flow's kickoff
// fields. Extra keys are allowed; callers routinely send more than the
// template declares.
func kickoffSchema(config *models.KickoffConfig) map[string]any {
	properties := make(map[string]any, len(config.Fields))

	var required []string

	for _, field := range config.Fields {
		properties[field.Name] = map[string]any{"type": field.Type}

		if field.Required {
			required = append(required, field.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// ValidateKickoffData checks caller-supplied kickoff data against the
// flow's kickoff fields. Flows without kickoff fields accept anything.
func ValidateKickoffData(config *models.KickoffConfig, data map[string]any) error {
	if config == nil || len(config.Fields) == 0 {
		return nil
	}

	if data == nil {
		data = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(kickoffSchema(config)),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to validate kickoff data: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return NewValidationError("ValidateKickoffData", CodeValidationError, strings.Join(messages, "; "), ErrKickoffDataInvalid)
	}

	return nil
}
