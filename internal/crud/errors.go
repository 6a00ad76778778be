package crud

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationFailed matches every *OperationError.
	ErrOperationFailed = errors.New("operation failed")
	// ErrFeatureDisabled is returned when an operation needs a feature the model does not enable.
	ErrFeatureDisabled = errors.New("feature not enabled for this model")
	// ErrUnknownAction is returned by RunAction for an action the model does not declare.
	ErrUnknownAction = errors.New("unknown action")
)

// OperationError is the error returned for any backend failure. It names the operation and the
// model label only; the cause is logged by the service and never exposed.
type OperationError struct {
	Op    string
	Model string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("failed to %s %s", e.Op, e.Model)
}

func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}

// RejectionError is a refusal meant for the user, such as a hook rule or malformed import data.
// The service returns it unchanged.
type RejectionError struct {
	Field   string
	Message string
}

func (e *RejectionError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Reject builds a RejectionError. Hooks and action handlers return it to refuse an operation
// with a message the caller may show.
func Reject(field, format string, args ...any) error {
	return &RejectionError{Field: field, Message: fmt.Sprintf(format, args...)}
}
