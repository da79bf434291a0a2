package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const waitDelay = 2 * time.Second

// StderrFunc receives stderr of a running command line by line.
type StderrFunc func(ctx context.Context, line string)

// Runner is a thin wrapper around os/exec. It is safe for concurrent use,
// every Run owns its own process.
type Runner struct {
	stderrFunc StderrFunc
}

func NewRunner() *Runner {
	return &Runner{}
}

// WithStderr makes every following Run pass the process stderr to f.
func (r *Runner) WithStderr(f StderrFunc) *Runner {
	ret := *r
	ret.stderrFunc = f
	return &ret
}

type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string // nil => inherit the environment of this process
}

// Result is the terminal state of one Run. Either Err is set, or Stdout holds
// everything the process wrote to its standard output.
type Result struct {
	Path    string
	Args    []string
	Dir     string
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState
	Stdout  *bytes.Buffer
	Err     error
}

// ExitCode returns -1 when the process did not run to its end.
func (r Result) ExitCode() int {
	if r.State == nil {
		return -1
	}
	return r.State.ExitCode()
}

// Run starts the command and returns a channel which receives exactly one
// Result and is closed afterwards. A process exiting with a non-zero status is
// not an error; the status is available through Result.State. Cancelling ctx
// kills the process.
func (r *Runner) Run(ctx context.Context, proto Command) <-chan Result {
	ch := make(chan Result, 1)

	result := Result{
		Path:   proto.Path,
		Args:   append([]string(nil), proto.Args...),
		Dir:    proto.Dir,
		Stdout: &bytes.Buffer{},
	}

	cmd := exec.CommandContext(ctx, result.Path, result.Args...)
	cmd.Dir = proto.Dir
	if proto.Env != nil {
		cmd.Env = append(os.Environ(), proto.Env...)
	}
	cmd.Stdout = result.Stdout
	// flow forks a server which may keep our pipes open
	cmd.WaitDelay = waitDelay

	var stderr *lineWriter
	if r.stderrFunc != nil {
		stderr = &lineWriter{ctx: ctx, f: r.stderrFunc}
		cmd.Stderr = stderr
	}

	result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		result.Stopped = time.Now().UTC()
		result.Err = err
		ch <- result
		close(ch)
		return ch
	}

	go func() {
		err := cmd.Wait()
		result.Stopped = time.Now().UTC()
		result.State = cmd.ProcessState
		if stderr != nil {
			stderr.flush()
		}

		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			result.Err = context.Cause(ctx)
		case errors.As(err, &exitErr):
			slog.DebugContext(ctx, "command exited", "path", result.Path, "exit_code", exitErr.ExitCode())
		case errors.Is(err, exec.ErrWaitDelay):
			slog.WarnContext(ctx, "command left its output open: closed", "path", result.Path)
		default:
			result.Err = err
		}
		if result.Err != nil {
			result.Stdout = &bytes.Buffer{}
		}
		ch <- result
		close(ch)
	}()
	return ch
}

// lineWriter calls f for every complete line written to it.
// os/exec writes from a single goroutine.
type lineWriter struct {
	ctx context.Context
	f   StderrFunc
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.f(w.ctx, strings.TrimSuffix(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.f(w.ctx, strings.TrimSuffix(string(w.buf), "\r"))
		w.buf = nil
	}
}
