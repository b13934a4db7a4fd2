package source

import (
	"errors"
	"fmt"
)

// ErrDynamicSourceUnspecified is returned when an endpoint without a
// configured source is requested without a ?source= parameter.
var ErrDynamicSourceUnspecified = errors.New("dynamic source requires a source parameter")

// ErrBaseNotInferred is returned when a relative source cannot be
// resolved because no base URL is configured or inferable from the
// request.
var ErrBaseNotInferred = errors.New("base url could not be inferred")

// MissingPlaceholderError is returned when a templated source has a
// placeholder with neither a request-supplied value nor a default.
type MissingPlaceholderError struct {
	Placeholder string
}

func (e *MissingPlaceholderError) Error() string {
	return fmt.Sprintf("missing value for source template placeholder %q", e.Placeholder)
}

// TemplateValidationError is returned when a placeholder value does
// not match its validation pattern.
type TemplateValidationError struct {
	Placeholder string
	Value       string
}

func (e *TemplateValidationError) Error() string {
	return fmt.Sprintf("value %q for source template placeholder %q failed validation", e.Value, e.Placeholder)
}
