package pipelineerr_test

import (
	"errors"
	"testing"

	"descant/internal/pipelineerr"
)

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := pipelineerr.Wrap(pipelineerr.ErrEncodeFailed, "processor", "encode", "mp3 write failed", cause)

	if !errors.Is(err, pipelineerr.ErrEncodeFailed) {
		t.Fatal("expected wrapped error to match ErrEncodeFailed")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped error to match the original cause")
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := pipelineerr.Wrap(pipelineerr.ErrSyncFatal, "syncrouter", "route", "no matching route", nil)
	if !errors.Is(err, pipelineerr.ErrSyncFatal) {
		t.Fatal("expected wrapped error to match ErrSyncFatal")
	}
}

func TestArchiveSubdirMapsKnownMarkers(t *testing.T) {
	cases := map[error]string{
		pipelineerr.ErrSeparationTimeout: "separation",
		pipelineerr.ErrSeparationFailed:  "separation",
		pipelineerr.ErrOutputMissing:     "separation",
		pipelineerr.ErrExtractFailed:     "extract",
		pipelineerr.ErrEncodeFailed:      "encode",
		pipelineerr.ErrTagWriteFailed:    "tag",
		pipelineerr.ErrPublishConflict:   "duplicate",
	}
	for marker, want := range cases {
		wrapped := pipelineerr.Wrap(marker, "stage", "op", "msg", nil)
		if got := pipelineerr.ArchiveSubdir(wrapped); got != want {
			t.Errorf("ArchiveSubdir(%v) = %q, want %q", marker, got, want)
		}
	}
}

func TestArchiveSubdirUnknownFallsBackToUnknown(t *testing.T) {
	if got := pipelineerr.ArchiveSubdir(errors.New("unrelated")); got != "unknown" {
		t.Fatalf("expected fallback %q, got %q", "unknown", got)
	}
}

func TestIsRetryableOnlyMatchesChunkLevelMarkers(t *testing.T) {
	retryable := []error{pipelineerr.ErrSeparationTimeout, pipelineerr.ErrSeparationFailed, pipelineerr.ErrOutputMissing}
	for _, marker := range retryable {
		if !pipelineerr.IsRetryable(pipelineerr.Wrap(marker, "s", "o", "m", nil)) {
			t.Errorf("expected %v to be retryable", marker)
		}
	}

	notRetryable := []error{pipelineerr.ErrEncodeFailed, pipelineerr.ErrSyncTransient, pipelineerr.ErrCorruptInput}
	for _, marker := range notRetryable {
		if pipelineerr.IsRetryable(pipelineerr.Wrap(marker, "s", "o", "m", nil)) {
			t.Errorf("expected %v not to be retryable", marker)
		}
	}
}
