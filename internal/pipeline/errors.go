package pipeline

import (
	"errors"
	"fmt"

	"github.com/sells-group/coldspot-cli/internal/loader"
	"github.com/sells-group/coldspot-cli/internal/merge"
)

// Stage names a pipeline step.
type Stage string

const (
	StageLoad    Stage = "load"
	StageMerge   Stage = "merge"
	StageCompute Stage = "compute"
	StagePersist Stage = "persist"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInputNotFound     Kind = "input_not_found"
	KindSchemaMismatch    Kind = "schema_mismatch"
	KindComputationDefect Kind = "computation_defect"
	KindSinkWriteFailure  Kind = "sink_write_failure"
)

// StageError is a fatal failure attributed to a stage.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s stage failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageError wraps err with its stage and inferred kind. nil stays nil.
func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Kind: kindOf(stage, err), Err: err}
}

func kindOf(stage Stage, err error) Kind {
	var schemaErr *loader.SchemaError
	switch {
	case errors.Is(err, loader.ErrInputNotFound):
		return KindInputNotFound
	case errors.As(err, &schemaErr), errors.Is(err, merge.ErrKeyUnavailable):
		return KindSchemaMismatch
	}
	switch stage {
	case StagePersist:
		return KindSinkWriteFailure
	case StageCompute:
		return KindComputationDefect
	default:
		return KindSchemaMismatch
	}
}

// KindOf returns the kind of a pipeline error, or "" when err is not a StageError.
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
