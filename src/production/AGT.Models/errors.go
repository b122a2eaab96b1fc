package agtmodels

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload means the whole ingestion request is unusable
	// (for example, no hardware address). Fatal to that call only.
	ErrInvalidPayload = errors.New("invalid telemetry payload")

	// ErrUnknownDevice means a command targeted a device that does not
	// exist and no default-creation policy applied.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrInvalidTransition marks a command status change that would move
	// backwards. Callers treat it as a no-op for terminal-state reports.
	ErrInvalidTransition = errors.New("invalid command status transition")
)

// MeasurementParseError records a single non-numeric measurement field.
// It never fails the ingestion call; the field is skipped and reported.
type MeasurementParseError struct {
	Key   string
	Value interface{}
}

func (e *MeasurementParseError) Error() string {
	return fmt.Sprintf("measurement %q: value %v is not numeric", e.Key, e.Value)
}
