// Package errs defines the error kinds surfaced by a backtest run.
//
// Callers match on kind with errors.Is against ErrConfig, ErrData and
// ErrStateInvariant, or unwrap into the concrete type with errors.As.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrConfig         = errors.New("config error")
	ErrData           = errors.New("data error")
	ErrStateInvariant = errors.New("state invariant violated")
)

// ConfigError reports an unknown, malformed or missing configuration value.
// It is raised before any computation starts.
type ConfigError struct {
	Field string // dotted key, e.g. "indicators.rsi.period"
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Field == "" {
		return "config: " + msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, msg)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
func (e *ConfigError) Unwrap() error        { return e.Err }

// Config builds a ConfigError for field.
func Config(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// DataError reports an empty, unordered or too short candle sequence.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string        { return "data: " + e.Msg }
func (e *DataError) Is(target error) bool { return target == ErrData }

func Data(format string, args ...any) error {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}

// StateInvariantError means the engine itself is broken: overlapping
// positions, a negative balance or an equity curve of the wrong length.
// A run that hits one is aborted and no result is returned.
type StateInvariantError struct {
	Msg string
}

func (e *StateInvariantError) Error() string        { return "invariant: " + e.Msg }
func (e *StateInvariantError) Is(target error) bool { return target == ErrStateInvariant }

func Invariant(format string, args ...any) error {
	return &StateInvariantError{Msg: fmt.Sprintf(format, args...)}
}
