// Package command runs console commands through the platform shell and
// provides the built-in catalog of canned commands.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultTimeout bounds a command when no timeout is configured.
const DefaultTimeout = 30 * time.Second

var (
	// ErrEmptyCommand is returned for a blank command line.
	ErrEmptyCommand = errors.New("command: empty command line")

	// ErrTimeout is returned when a command outlives the runner's timeout.
	// The partial output is still returned.
	ErrTimeout = errors.New("command: timed out")
)

// Result describes one finished command.
type Result struct {
	Command  string        `json:"command"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
	Started  time.Time     `json:"started"`
}

// Success reports whether the command exited with status zero.
func (r Result) Success() bool { return !r.TimedOut && r.ExitCode == 0 }

// RunnerOption configures a [Runner].
type RunnerOption func(*Runner) error

// WithTimeout sets the per-command limit. Zero or less keeps the default.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) error {
		if d > 0 {
			r.timeout = d
		}
		return nil
	}
}

// WithEncoding decodes command output with the named charset, for example
// "gbk" or "windows-1252". Names follow the WHATWG encoding labels.
func WithEncoding(name string) RunnerOption {
	return func(r *Runner) error {
		if name == "" {
			return nil
		}
		enc, err := htmlindex.Get(name)
		if err != nil {
			return fmt.Errorf("command: unknown encoding %q: %w", name, err)
		}
		r.encoding = enc
		r.encodingName = name
		return nil
	}
}

// WithShell overrides the shell. The command line is appended to args.
func WithShell(name string, args ...string) RunnerOption {
	return func(r *Runner) error {
		if name == "" {
			return errors.New("command: empty shell")
		}
		r.shell = append([]string{name}, args...)
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) error {
		if l != nil {
			r.log = l
		}
		return nil
	}
}

// Runner executes command lines. It is safe for concurrent use.
type Runner struct {
	shell        []string
	timeout      time.Duration
	encoding     encoding.Encoding
	encodingName string
	log          *zap.Logger
}

// NewRunner returns a runner using cmd.exe /c on Windows and sh -c
// elsewhere, a 30 second timeout and UTF-8 output.
func NewRunner(opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		shell:        defaultShell(),
		timeout:      DefaultTimeout,
		encodingName: "utf-8",
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func defaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd.exe", "/c"}
	}
	return []string{"sh", "-c"}
}

// Timeout returns the per-command limit.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// Encoding returns the charset name used for output.
func (r *Runner) Encoding() string { return r.encodingName }

// Run executes line and waits for it. A non-zero exit status is reported in
// the result, not as an error. When the timeout fires the process is killed
// and ErrTimeout is returned with whatever output was captured. If ctx ends
// first its error is returned instead.
func (r *Runner) Run(ctx context.Context, line string) (Result, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Result{}, ErrEmptyCommand
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string(nil), r.shell[1:]...), line)
	cmd := exec.CommandContext(runCtx, r.shell[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the pipes must not keep Wait blocked after a kill.
	cmd.WaitDelay = time.Second

	res := Result{Command: line, Started: time.Now()}
	r.log.Debug("running command", zap.String("command", line))

	err := cmd.Run()
	res.Duration = time.Since(res.Started)
	res.Stdout = r.decode(stdout.Bytes())
	res.Stderr = r.decode(stderr.Bytes())
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		return res, fmt.Errorf("command %q: %w", line, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		r.log.Warn("command timed out", zap.String("command", line), zap.Duration("timeout", r.timeout))
		return res, fmt.Errorf("%w after %s: %s", ErrTimeout, r.timeout, line)
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return res, fmt.Errorf("command %q: %w", line, err)
	}

	r.log.Debug("command finished",
		zap.String("command", line),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("took", res.Duration))
	return res, nil
}

func (r *Runner) decode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if r.encoding == nil {
		return string(b)
	}
	out, err := r.encoding.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
