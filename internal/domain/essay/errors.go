package essay

import (
	"errors"
	"fmt"
)

// Pipeline stage names used in errors, logs and persisted run errors.
const (
	StageHolistic  = "stage1_holistic"
	StageAnalyzers = "stage2_analyzers"
	StageStyle     = "stage3_style"
	StageSynthesis = "stage4_synthesis"
	StageWorkshop  = "workshop"
)

// StageFailedError is returned when a generative stage keeps failing after its
// retry budget. Analyzer is set for stage 2 failures.
type StageFailedError struct {
	Stage    string
	Analyzer string
	Attempts int
	Err      error
}

func (e *StageFailedError) Error() string {
	name := e.Stage
	if e.Analyzer != "" {
		name = e.Stage + "/" + e.Analyzer
	}
	return fmt.Sprintf("stage %s failed after %d attempt(s): %v", name, e.Attempts, e.Err)
}

func (e *StageFailedError) Unwrap() error { return e.Err }

// StructuralError means a derived record broke a shape invariant, for example
// fewer than 12 dimension scores. It is always fatal.
type StructuralError struct {
	What string
	Want int
	Got  int
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error: %s: want %d, got %d", e.What, e.Want, e.Got)
}

// InputError rejects caller input before any work starts.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// AsStageFailed unwraps err into a *StageFailedError.
func AsStageFailed(err error) (*StageFailedError, bool) {
	var sf *StageFailedError
	if errors.As(err, &sf) {
		return sf, true
	}
	return nil, false
}

// IsInputError reports whether err is a caller input problem.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// IsStructural reports whether err is a structural invariant violation.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
