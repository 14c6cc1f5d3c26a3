package pipeline

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid handler registration: a duplicate
// identity without replace intent, or an order that conflicts with the
// required built-in position. Fatal at startup, never surfaced per-request.
type ConfigurationError struct {
	ContextType ContextType
	Name        string
	Reason      string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("pipeline configuration: handler %q for %s: %s", e.Name, e.ContextType, e.Reason)
}

// IsConfigurationError reports whether err is a registration-time failure.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// HandlerFailure wraps a handler action that failed outside the structured
// outcome mechanism. It is fatal for the operation: no partial response is
// sent and the outer driver decides the transport-level behavior.
type HandlerFailure struct {
	ContextType ContextType
	Handler     string
	Err         error
}

func (e *HandlerFailure) Error() string {
	return fmt.Sprintf("pipeline handler %q for %s failed: %v", e.Handler, e.ContextType, e.Err)
}

func (e *HandlerFailure) Unwrap() error { return e.Err }

// IsHandlerFailure reports whether err is an unexpected handler failure.
func IsHandlerFailure(err error) bool {
	var hf *HandlerFailure
	return errors.As(err, &hf)
}
