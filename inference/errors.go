// Package inference - Typed pipeline failures.
package inference

import (
	"fmt"

	"github.com/pkg/errors"
)

// FaultKind classifies a pipeline failure.
type FaultKind string

const (
	// FaultImageAccess means the image could not be drawn or read back, or
	// has unusable dimensions.
	FaultImageAccess FaultKind = "image_access"
	// FaultShapeMismatch means the output tensor does not have the expected
	// detection-head layout.
	FaultShapeMismatch FaultKind = "shape_mismatch"
	// FaultEngine means the engine call failed, panicked or returned nothing.
	FaultEngine FaultKind = "engine"
	// FaultConfig means the invocation configuration is invalid.
	FaultConfig FaultKind = "config"
	// FaultCanceled means the context ended before the engine call.
	FaultCanceled FaultKind = "canceled"
)

// Stage is a step of a single pipeline invocation.
type Stage string

const (
	StageResizing    Stage = "resizing"
	StageInferring   Stage = "inferring"
	StageDecoding    Stage = "decoding"
	StageSuppressing Stage = "suppressing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Fault is the error returned by every failed pipeline invocation.
//
// A Fault is never returned together with a result, so callers can tell a
// broken pipeline apart from an image with no detections.
type Fault struct {
	// Kind classifies the failure.
	Kind FaultKind
	// Stage is the stage the pipeline was in when it failed.
	Stage Stage
	// Err is the underlying cause.
	Err error
}

// Sentinel faults for errors.Is. They match any Fault of the same kind.
var (
	ErrImageAccess   = &Fault{Kind: FaultImageAccess}
	ErrShapeMismatch = &Fault{Kind: FaultShapeMismatch}
	ErrEngine        = &Fault{Kind: FaultEngine}
	ErrConfig        = &Fault{Kind: FaultConfig}
	ErrCanceled      = &Fault{Kind: FaultCanceled}
)

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s fault", f.Kind)
	}
	if f.Stage == "" {
		return fmt.Sprintf("%s fault: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s fault while %s: %v", f.Kind, f.Stage, f.Err)
}

// Unwrap returns the underlying cause.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Is reports whether target is a sentinel Fault of the same kind.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok || t.Err != nil {
		return false
	}
	return t.Kind == f.Kind
}

// KindOf returns the fault kind carried by err.
//
// Arguments:
//   - err: Any error returned by the pipeline.
//
// Returns:
//   - FaultKind: The kind of the fault.
//   - bool: False if err is not (and does not wrap) a Fault.
func KindOf(err error) (FaultKind, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

func newFault(kind FaultKind, stage Stage, err error) *Fault {
	return &Fault{Kind: kind, Stage: stage, Err: err}
}
