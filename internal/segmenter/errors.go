package segmenter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is matched by every *InputError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvariant is matched by every *InvariantError.
	ErrInvariant = errors.New("segmenter invariant violated")
)

// InputError reports a malformed or insufficient sample sequence.
// Index is the offending sample, or -1 when the problem concerns the whole sequence.
type InputError struct {
	Index  int
	Reason string
}

func (e *InputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Reason)
	}
	return fmt.Sprintf("%s: sample %d: %s", ErrInvalidInput, e.Index, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// ConfigError reports an out-of-range configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// InvariantError reports an internal state the pass should never reach.
type InvariantError struct {
	State  string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: in state %s: %s", ErrInvariant, e.State, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }
