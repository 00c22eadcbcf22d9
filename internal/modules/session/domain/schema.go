package domain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	apperrors "devtrack/internal/platform/errors"
)

const sessionSchema = `{
  "type": "object",
  "properties": {
    "id":        {"type": "string", "minLength": 1},
    "project":   {"type": ["string", "null"]},
    "startTime": {"type": "string"},
    "endTime":   {"type": ["string", "null"]},
    "duration":  {"type": ["number", "null"]},
    "notes":     {"type": ["string", "null"]}
  }
}`

var loadSessionSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(sessionSchema))
})

// ValidateFields checks a merged session record before it is persisted.
func ValidateFields(fields map[string]any) error {
	schema, err := loadSessionSchema()
	if err != nil {
		return fmt.Errorf("compile session schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(fields))
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidSession, err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidSession, strings.Join(problems, "; "))
}
