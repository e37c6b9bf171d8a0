package connector

import "fmt"

// ProtocolError is a non-2xx response from the connector or token
// service. It always carries the HTTP status and the raw response body
// so callers can log or alert with full detail.
type ProtocolError struct {
	Operation string
	Status    int
	Body      string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Operation, e.Status, e.Body)
}
