package schema

import "fmt"

// ValidationError reports a structurally invalid inbound activity: a body
// that is not valid JSON, or one missing the required type discriminator.
// It is fatal for the request that carried the activity.
type ValidationError struct {
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid activity: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid activity: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Cause }
