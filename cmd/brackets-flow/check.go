package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zaggino/brackets-flow/internal/log"
	"github.com/zaggino/brackets-flow/internal/model"
	"github.com/zaggino/brackets-flow/internal/parallel"
	"github.com/zaggino/brackets-flow/internal/project"
	"github.com/zaggino/brackets-flow/internal/service"
	"github.com/zaggino/brackets-flow/internal/walk"
)

// fileResult is one line of check output.
type fileResult struct {
	File   string             `json:"file"`
	Errors []model.Diagnostic `json:"errors"`
}

func doCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("brackets-flow",
		slog.String("cmd", "check"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	flow := effectiveFlow(config.Flow, overrides)
	cfg, err := service.NewConfig(flow)
	if err != nil {
		return err
	}

	files := args
	if len(files) == 0 {
		files, err = projectSources(ctx, flagProject)
		if err != nil {
			return err
		}
	}

	locator := project.NewLocator(flow)
	linter := service.NewLinter(locator, cfg)
	return checkFiles(ctx, linter, locator, flagProject, files, flagJobs, os.Stdout)
}

// projectSources lists the javascript sources of a project
func projectSources(ctx context.Context, root string) ([]string, error) {
	var files []string
	var errs []error
	for path, err := range walk.Sources(ctx, root, walk.Extensions) {
		if err != nil {
			slog.WarnContext(ctx, "can't walk", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		files = append(files, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Join(errs...)
	}
	slog.DebugContext(ctx, "project sources", "root", root, "files", len(files))
	return files, nil
}

// checkFiles checks files concurrently, at most jobs at once (jobs <= 0 means
// all of them), so files of the same project share one flow run. Results are
// written in the order of files.
func checkFiles(ctx context.Context, linter *service.Linter, locator project.Locator, root string, files []string, jobs int, out io.Writer) error {
	check := func(ctx context.Context, file string) (fileResult, error) {
		return checkFile(ctx, linter, locator, root, file)
	}

	enc := json.NewEncoder(out)
	var errs []error
	i := 0
	for res, err := range parallel.Map(ctx, jobs, files, check) {
		file := files[i]
		i++
		if err != nil {
			slog.ErrorContext(ctx, "check failed", "file", file, "error", err)
			errs = append(errs, err)
			continue
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
	return errors.Join(errs...)
}

func checkFile(ctx context.Context, linter *service.Linter, locator project.Locator, root, file string) (fileResult, error) {
	if root == "" {
		var err error
		root, err = locator.FindRoot(file)
		if errors.Is(err, project.ErrNoRoot) {
			slog.DebugContext(ctx, "file is not in a flow project", "file", file)
			return fileResult{File: file, Errors: []model.Diagnostic{}}, nil
		}
		if err != nil {
			return fileResult{}, err
		}
	}

	report, err := linter.Diagnostics(ctx, root, file)
	if err != nil {
		return fileResult{}, fmt.Errorf("checking %s: %w", file, err)
	}
	return fileResult{File: file, Errors: report.Errors}, nil
}
