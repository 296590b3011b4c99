// Package pipelineerr defines the error taxonomy the Processor and Sync
// Router dispatch on, grounded on the teacher's internal/services sentinel +
// Wrap pattern. Every component error surfaces to a top-level loop tagged
// with one of these markers so the loop (not the component) decides
// disposition.
package pipelineerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCorruptInput      = errors.New("corrupt input")
	ErrPlanExceeded      = fmt.Errorf("chunk plan exceeded maximum: %w", ErrCorruptInput)
	ErrSeparationTimeout = errors.New("separation timeout")
	ErrSeparationFailed  = errors.New("separation failed")
	ErrOutputMissing     = errors.New("separator output missing")
	ErrExtractFailed     = errors.New("chunk extract failed")
	ErrEncodeFailed      = errors.New("encode failed")
	ErrTagWriteFailed    = errors.New("tag write failed")
	ErrPublishConflict   = errors.New("publish conflict")
	ErrAlreadyRunning    = errors.New("already running")
	ErrSyncTransient     = errors.New("sync transient failure")
	ErrSyncFatal         = errors.New("sync fatal failure")
)

// Wrap builds an error that carries stage/operation context while tagging it
// with marker for later classification via errors.Is.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrCorruptInput
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ArchiveSubdir maps a job-fatal error to the archive/failed/<reason>
// subdirectory name the Queue Consumer archives the source bundle into.
func ArchiveSubdir(err error) string {
	switch {
	case errors.Is(err, ErrSeparationTimeout), errors.Is(err, ErrSeparationFailed), errors.Is(err, ErrOutputMissing):
		return "separation"
	case errors.Is(err, ErrExtractFailed):
		return "extract"
	case errors.Is(err, ErrEncodeFailed):
		return "encode"
	case errors.Is(err, ErrTagWriteFailed):
		return "tag"
	case errors.Is(err, ErrPublishConflict):
		return "duplicate"
	default:
		return "unknown"
	}
}

// IsRetryable reports whether the Processor should retry the chunk-level
// operation that produced err (spec §4.6 step 5).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSeparationTimeout) || errors.Is(err, ErrSeparationFailed) || errors.Is(err, ErrOutputMissing)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
