package hyqcore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when an operation is called before the
	// setup stage it depends on.
	ErrNotInitialized = errors.New("hyqcore: model not initialized")

	ErrInvalidParameter = errors.New("hyqcore: invalid parameter")
	ErrInvalidWell      = errors.New("hyqcore: invalid well")
	ErrDuplicateWell    = errors.New("hyqcore: duplicate well id")

	// ErrWellRegistered is returned when a well already belongs to another model.
	ErrWellRegistered = errors.New("hyqcore: well registered with another model")

	ErrSnapshotRange = errors.New("hyqcore: snapshot index out of range")

	// ErrNumerical is returned when the W(u) series overflows, typically for
	// cells far from a well at early times.
	ErrNumerical = errors.New("hyqcore: drawdown not finite")
)

// ParameterError reports a rejected numeric input.
type ParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("hyqcore: invalid %s %v: %s", e.Name, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// StageError reports an operation invoked out of the setup sequence.
type StageError struct {
	Op    string
	Stage Stage
	Need  Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("hyqcore: %s requires stage %s, model is %s", e.Op, e.Need, e.Stage)
}

func (e *StageError) Unwrap() error {
	return ErrNotInitialized
}
