// Package exectool wraps external command invocation behind a single seam:
// every subprocess the pipeline spawns (ffmpeg, ffprobe, the separator, rsync,
// scp) goes through Run so timeouts, combined output capture, and argv
// logging stay uniform. Adapters (mediatool, separator, syncrouter/backend)
// build typed results on top of this instead of constructing os/exec calls
// directly.
package exectool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned by Run when the command exceeded its timeout.
var ErrTimeout = errors.New("command timed out")

// Result captures the outcome of a single command invocation.
type Result struct {
	Args       []string
	Combined   string
	ExitCode   int
	Duration   time.Duration
	TimedOut   bool
}

// commandContext is overridden in tests.
var commandContext = exec.CommandContext

// Run executes name with args, bounding execution by timeout (zero means no
// bound). Stdout and stderr are captured combined, matching the teacher's
// drapto client pattern of piping stderr into stdout for error messages.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := commandContext(runCtx, name, args...) //nolint:gosec
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	elapsed := time.Since(start)

	res := Result{
		Args:     append([]string{name}, args...),
		Combined: buf.String(),
		Duration: elapsed,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		return res, fmt.Errorf("%s: %w", strings.Join(res.Args, " "), ErrTimeout)
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", strings.Join(res.Args, " "), err)
	}
	return res, nil
}
