package dispatch

import (
	"errors"
	"fmt"
)

// ErrTurnEnded is returned when a request-scoped client is used after
// the owning request's state machine reached Completed or Faulted.
var ErrTurnEnded = errors.New("no active turn")

// ConfigError reports a missing required scoped dependency at bind time.
// It is fatal: the conversation and user-token clients are core
// dependencies, not optional ones.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required dependency: %s", e.Missing)
}
