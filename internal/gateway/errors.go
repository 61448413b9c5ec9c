package gateway

import "fmt"

// ProviderError indicates the remote model call failed at the
// transport, auth, or rate-limit layer. Transient cases are retried
// before this surfaces.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider call failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// SchemaViolationError indicates the model's output could not be coerced
// into the target shape, even after repair attempts. Raw holds the last
// response text for diagnostics.
type SchemaViolationError struct {
	Op  string
	Raw string
	Err error
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("%s: response failed schema validation: %v", e.Op, e.Err)
}

func (e *SchemaViolationError) Unwrap() error {
	return e.Err
}
