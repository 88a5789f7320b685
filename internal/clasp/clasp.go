package clasp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Verb is a clasp subcommand
type Verb string

const (
	VerbPush    Verb = "push"
	VerbPull    Verb = "pull"
	VerbVersion Verb = "version"
	VerbDeploy  Verb = "deploy"
)

// Valid reports whether v is one of the supported verbs
func (v Verb) Valid() bool {
	switch v {
	case VerbPush, VerbPull, VerbVersion, VerbDeploy:
		return true
	}
	return false
}

var (
	// ErrUnknownVerb is returned for verbs outside the supported set
	ErrUnknownVerb = errors.New("unknown clasp verb")
	// ErrTimeout is returned when the configured timeout expires before clasp exits
	ErrTimeout = errors.New("clasp command timed out")
)

// ExitError reports a clasp invocation that exited with a non-zero code
type ExitError struct {
	Verb   Verb
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command failed with code %d: %s", e.Code, e.Stderr)
}

// Runner runs clasp commands
type Runner interface {
	// Run invokes clasp with the verb and arguments and returns its stdout
	Run(ctx context.Context, verb Verb, args ...string) (string, error)
}

// Options configures a ShellRunner
type Options struct {
	// Command is the executable to launch, e.g. "npx" or "clasp"
	Command string
	// Package is passed before the verb when set, e.g. "@google/clasp"
	Package string
	// Dir is the working directory of the child process
	Dir string
	// Timeout bounds each invocation; zero means no limit
	Timeout time.Duration
	// Sink receives output chunks as they arrive; nil uses ConsoleSink
	Sink Sink
	// Env is appended to the inherited environment
	Env []string
	// WaitDelay bounds how long output pipes are drained after clasp exits
	// or is killed; zero uses defaultWaitDelay
	WaitDelay time.Duration
}

const defaultWaitDelay = 5 * time.Second

// ShellRunner implements Runner by spawning the clasp CLI
type ShellRunner struct {
	opts   Options
	logger *slog.Logger
}

// NewShellRunner creates a runner that launches clasp as a child process
func NewShellRunner(opts Options, logger *slog.Logger) *ShellRunner {
	if opts.Sink == nil {
		opts.Sink = ConsoleSink(os.Stdout, os.Stderr)
	}
	if opts.WaitDelay <= 0 {
		opts.WaitDelay = defaultWaitDelay
	}
	return &ShellRunner{opts: opts, logger: logger}
}

// CommandLine returns the argv used for the given verb and arguments
func (r *ShellRunner) CommandLine(verb Verb, args ...string) []string {
	argv := make([]string, 0, len(args)+3)
	argv = append(argv, r.opts.Command)
	if r.opts.Package != "" {
		argv = append(argv, r.opts.Package)
	}
	argv = append(argv, string(verb))
	argv = append(argv, args...)
	return argv
}

// Run executes clasp and blocks until it exits. Output is forwarded to the sink
// while it is buffered; a non-zero exit yields an *ExitError carrying stderr.
func (r *ShellRunner) Run(ctx context.Context, verb Verb, args ...string) (string, error) {
	if !verb.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownVerb, verb)
	}

	runCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	argv := r.CommandLine(verb, args...)
	r.logger.Info("executing", "command", strings.Join(argv, " "), "dir", r.opts.Dir)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = r.opts.Dir
	if len(r.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), r.opts.Env...)
	}
	cmd.Stdout = &streamWriter{stream: Stdout, buf: &stdout, sink: r.opts.Sink}
	cmd.Stderr = &streamWriter{stream: Stderr, buf: &stderr, sink: r.opts.Sink}
	// Grandchildren (npx spawns node) may keep the pipes open after a kill
	cmd.WaitDelay = r.opts.WaitDelay

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	// Deadline and cancellation take precedence over the exit status of a killed child
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return stdout.String(), fmt.Errorf("%w: %s after %s", ErrTimeout, verb, r.opts.Timeout)
	}
	if ctx.Err() != nil {
		return stdout.String(), fmt.Errorf("clasp %s interrupted: %w", verb, ctx.Err())
	}

	// clasp exited cleanly but a grandchild still held the pipes open
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		r.logger.Warn("output pipes still open after clasp exited", "verb", verb, "wait_delay", r.opts.WaitDelay)
		return stdout.String(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), &ExitError{
			Verb:   verb,
			Code:   exitErr.ExitCode(),
			Stderr: stderr.String(),
		}
	}

	return stdout.String(), fmt.Errorf("failed to run %s: %w", argv[0], err)
}

// streamWriter buffers one output stream and mirrors each chunk to the sink.
// os/exec calls Write from a single goroutine per stream.
type streamWriter struct {
	stream Stream
	buf    *bytes.Buffer
	sink   Sink
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	chunk := make([]byte, len(p))
	copy(chunk, p)
	w.sink.Emit(Event{Stream: w.stream, Data: chunk})
	return len(p), nil
}

var _ io.Writer = (*streamWriter)(nil)
