package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/encoding/unicode"
)

const (
	// DefaultTimeout bounds a single run when the caller passes zero.
	DefaultTimeout = 300 * time.Second
	// DefaultMaxConcurrent is the number of processes allowed at once.
	DefaultMaxConcurrent = 4
	// DefaultShell interprets every command string.
	DefaultShell = "sh"

	// TracerName identifies spans emitted by this package.
	TracerName = "github.com/Lin-Jiong-HDU/cmdgate/internal/core/execution"

	waitDelay = 2 * time.Second
)

// Request is one command to run.
type Request struct {
	ID         string
	Command    string
	WorkingDir string
}

// Result is the captured outcome of a run.
type Result = registry.ExecutionResult

// Coordinator runs approved commands in their own process group.
type Coordinator struct {
	shell  string
	sem    *semaphore.Weighted
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithShell overrides the interpreter used for `<shell> -c <command>`.
func WithShell(shell string) Option {
	return func(c *Coordinator) {
		if shell != "" {
			c.shell = shell
		}
	}
}

// WithMaxConcurrent bounds the number of processes running at once.
func WithMaxConcurrent(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		shell:  DefaultShell,
		sem:    semaphore.NewWeighted(DefaultMaxConcurrent),
		logger: slog.Default().With("component", "execution"),
		tracer: otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs req.Command and waits for it to finish, time out, or be
// canceled through ctx. On timeout or cancel the whole process group is
// killed and reaped before Execute returns, and the result carries exit code
// -1 with an explanatory stderr.
func (c *Coordinator) Execute(ctx context.Context, req Request, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, span := c.tracer.Start(ctx, "execution.Execute",
		trace.WithAttributes(
			attribute.String("proposal.id", req.ID),
			attribute.String("command", req.Command),
			attribute.String("working_dir", req.WorkingDir),
			attribute.Int64("timeout_ms", timeout.Milliseconds()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		span.RecordError(ErrCanceled)
		span.SetStatus(codes.Error, ErrCanceled.Error())
		return canceledResult(0), ErrCanceled
	}
	defer c.sem.Release(1)

	// Acquire may succeed on an already finished context.
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, ErrCanceled.Error())
		return canceledResult(0), ErrCanceled
	}

	result, err := c.run(ctx, req, timeout)

	span.SetAttributes(
		attribute.Int("exit_code", result.ExitCode),
		attribute.Bool("success", result.Success),
		attribute.Int64("duration_ms", result.Duration.Milliseconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (c *Coordinator) run(ctx context.Context, req Request, timeout time.Duration) (Result, error) {
	cmd := exec.Command(c.shell, "-c", req.Command)
	cmd.Dir = req.WorkingDir
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		spawnErr := &SpawnError{Command: req.Command, Err: err}
		c.logger.Warn("spawn failed", "proposal_id", req.ID, "error", err)
		return Result{
			Stderr:   spawnErr.Error(),
			ExitCode: -1,
			Duration: time.Since(start),
		}, spawnErr
	}

	pid := cmd.Process.Pid
	c.logger.Debug("process started", "proposal_id", req.ID, "pid", pid)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		return c.completed(req, pid, waitErr, &stdout, &stderr, time.Since(start))

	case <-timer.C:
		c.terminate(req.ID, pid, done)
		c.logger.Info("process timed out", "proposal_id", req.ID, "timeout", timeout)
		return Result{
			Stdout:   decode(stdout.Bytes()),
			Stderr:   fmt.Sprintf("Command timed out after %d seconds", int64(timeout/time.Second)),
			ExitCode: -1,
			Duration: time.Since(start),
			TimedOut: true,
		}, ErrTimedOut

	case <-ctx.Done():
		c.terminate(req.ID, pid, done)
		c.logger.Info("process canceled", "proposal_id", req.ID)
		res := canceledResult(time.Since(start))
		res.Stdout = decode(stdout.Bytes())
		return res, ErrCanceled
	}
}

// terminate kills the group and blocks until the leader is reaped.
func (c *Coordinator) terminate(id string, pid int, done <-chan error) {
	if err := killGroup(pid); err != nil {
		c.logger.Warn("failed to kill process group", "proposal_id", id, "pid", pid, "error", err)
	}
	<-done
}

func (c *Coordinator) completed(req Request, pid int, waitErr error, stdout, stderr *bytes.Buffer, d time.Duration) (Result, error) {
	result := Result{Duration: d}

	switch {
	case waitErr == nil:
		result.ExitCode = 0

	case errors.Is(waitErr, exec.ErrWaitDelay):
		// The leader exited cleanly but something in its group kept the
		// output pipes open.
		_ = killGroup(pid)
		result.ExitCode = 0

	default:
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			captureErr := &CaptureError{Err: waitErr}
			c.logger.Warn("output capture failed", "proposal_id", req.ID, "error", waitErr)
			return Result{
				Stderr:   captureErr.Error(),
				ExitCode: -1,
				Duration: d,
			}, captureErr
		}
		// ExitCode is -1 when the process was terminated by a signal.
		result.ExitCode = exitErr.ExitCode()
	}

	result.Stdout = decode(stdout.Bytes())
	result.Stderr = decode(stderr.Bytes())
	result.Success = result.ExitCode == 0

	c.logger.Debug("process exited", "proposal_id", req.ID, "exit_code", result.ExitCode, "duration", d)
	return result, nil
}

func canceledResult(d time.Duration) Result {
	return Result{
		Stderr:   "Command canceled",
		ExitCode: -1,
		Duration: d,
	}
}

// decode converts process output to text, replacing invalid UTF-8 with
// U+FFFD.
func decode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}

// ErrorDetails renders a human readable summary of a failed run.
func ErrorDetails(result Result) string {
	var details []string

	if !result.Success {
		details = append(details, fmt.Sprintf("Exit code: %d", result.ExitCode))
	}
	if result.Stderr != "" {
		details = append(details, "Error output:\n"+result.Stderr)
	}
	if result.Stdout != "" && !result.Success {
		details = append(details, "Standard output:\n"+result.Stdout)
	}

	if len(details) == 0 {
		return "Command failed with no error details"
	}
	return strings.Join(details, "\n\n")
}
