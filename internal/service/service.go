package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/zaggino/brackets-flow/internal/coalesce"
	"github.com/zaggino/brackets-flow/internal/log"
	"github.com/zaggino/brackets-flow/internal/model"
	"github.com/zaggino/brackets-flow/internal/report"
)

const (
	installMessage = "Flow binary not found. Install it with `npm install --save-dev flow-bin` or set flow.binary in the configuration."
	timeoutMessage = "Flow timeout of %dms exceeded."
)

// Locator answers whether a project opted in to flow and where flow lives.
type Locator interface {
	HasConfig(root string) bool
	Binary(root string) (string, bool)
}

// Linter provides flow diagnostics per file. All files of one project share
// a single flow run at a time.
type Linter struct {
	locator Locator
	config  Config
	runner  *Runner
	flight  *coalesce.Coalescer[model.FlowResult]
}

func NewLinter(locator Locator, config Config) *Linter {
	l := &Linter{
		locator: locator,
		config:  config,
		runner:  NewRunner().WithStderr(logStderr),
	}
	l.flight = coalesce.New(
		l.check,
		coalesce.WithDefaultTimeout(config.Timeout),
		coalesce.WithKillOnTimeout(config.KillOnTimeout),
	)
	return l
}

// Diagnostics returns the report for filePath inside projectRoot.
//
// A project without flow configuration gets an empty report. A missing flow
// binary and a timeout are reported as a single diagnostic at the start of
// the file. Failures to run flow or to read its output are returned as errors.
func (l *Linter) Diagnostics(ctx context.Context, projectRoot, filePath string) (model.FileReport, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return model.FileReport{}, fmt.Errorf("resolving project root: %w", err)
	}
	ctx = log.ContextAttrs(ctx, slog.String("project", root), slog.String("file", filePath))

	if !l.locator.HasConfig(root) {
		slog.DebugContext(ctx, "no flow config: skipping")
		return model.NewFileReport(), nil
	}
	if _, ok := l.locator.Binary(root); !ok {
		slog.DebugContext(ctx, "flow binary not found")
		return model.SingleError(installMessage), nil
	}

	raw, err := l.flight.Invoke(ctx, root, l.config.Timeout)
	var tmout *coalesce.TimeoutError
	switch {
	case errors.As(err, &tmout):
		return model.SingleError(fmt.Sprintf(timeoutMessage, tmout.Timeout.Milliseconds())), nil
	case err != nil:
		return model.FileReport{}, err
	}
	return report.Map(filePath, raw), nil
}

// check runs flow once for the project root.
func (l *Linter) check(ctx context.Context, root string) (model.FlowResult, error) {
	binary, ok := l.locator.Binary(root)
	if !ok {
		return model.FlowResult{}, fmt.Errorf("%w: no flow binary for %s", model.ErrSpawn, root)
	}

	res := <-l.runner.Run(ctx, l.config.Cmd(binary, root))
	if res.Err != nil {
		return model.FlowResult{}, fmt.Errorf("%w: %w", model.ErrSpawn, res.Err)
	}

	var out model.FlowResult
	if err := json.Unmarshal(res.Stdout.Bytes(), &out); err != nil {
		return model.FlowResult{}, fmt.Errorf("%w: exit code %d: %w", model.ErrParse, res.ExitCode(), err)
	}
	slog.DebugContext(ctx, "flow finished",
		"exit_code", res.ExitCode(),
		"errors", len(out.Errors),
		"elapsed", res.Stopped.Sub(res.Started).String(),
	)
	return out, nil
}

func logStderr(ctx context.Context, line string) {
	slog.DebugContext(ctx, "flow stderr", "line", line)
}
