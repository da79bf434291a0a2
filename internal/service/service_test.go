package service_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zaggino/brackets-flow/internal/model"
	"github.com/zaggino/brackets-flow/internal/service"

	"github.com/stretchr/testify/require"
)

type locator struct {
	config bool
	binary string
}

func (l locator) HasConfig(string) bool { return l.config }

func (l locator) Binary(string) (string, bool) { return l.binary, l.binary != "" }

// project is a temporary flow project with a shell script standing in for flow
type project struct {
	root    string
	flow    string
	counter string
}

func newProject(t *testing.T) project {
	t.Helper()
	lookSh(t)
	root := t.TempDir()
	return project{
		root:    root,
		flow:    filepath.Join(root, "flow"),
		counter: filepath.Join(root, "runs"),
	}
}

// script makes the fake flow binary count its runs and execute body
func (p project) script(t *testing.T, body string) project {
	t.Helper()
	content := fmt.Sprintf("#!/bin/sh\necho run >> '%s'\n%s\n", p.counter, body)
	require.NoError(t, os.WriteFile(p.flow, []byte(content), 0o755))
	return p
}

// output stores flow json and returns a script printing it like flow does
func (p project) output(t *testing.T, result model.FlowResult) string {
	t.Helper()
	b, err := json.Marshal(result)
	require.NoError(t, err)
	path := filepath.Join(p.root, "output.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return fmt.Sprintf("cat '%s'\nexit 2", path)
}

func (p project) runs(t *testing.T) int {
	t.Helper()
	b, err := os.ReadFile(p.counter)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(b), "run\n")
}

func (p project) file(name string) string {
	return filepath.Join(p.root, name)
}

func flowResult(p project) model.FlowResult {
	return model.FlowResult{Errors: []model.FlowError{
		{Level: "error", Message: []model.FlowMessage{
			{Type: model.CommentType, Descr: "Foo"},
			{Path: p.file("a.js"), Type: "Blame", Descr: "bad", Line: 5, Start: 3},
		}},
		{Level: "warning", Message: []model.FlowMessage{
			{Path: p.file("b.js"), Type: "Blame", Descr: "meh", Line: 1, Start: 1},
		}},
	}}
}

func config(timeout time.Duration) service.Config {
	return service.Config{
		Args:          model.DefaultArgs,
		Timeout:       timeout,
		KillOnTimeout: true,
	}
}

func TestDiagnostics_ConfigAbsent(t *testing.T) {
	t.Parallel()
	p := newProject(t).script(t, "echo '{}'")
	linter := service.NewLinter(locator{config: false, binary: p.flow}, config(time.Second))

	got, err := linter.Diagnostics(t.Context(), p.root, p.file("a.js"))
	require.NoError(t, err)
	require.Empty(t, got.Errors)
	require.Zero(t, p.runs(t))
}

func TestDiagnostics_BinaryAbsent(t *testing.T) {
	t.Parallel()
	p := newProject(t).script(t, "echo '{}'")
	linter := service.NewLinter(locator{config: true}, config(time.Second))

	got, err := linter.Diagnostics(t.Context(), p.root, p.file("a.js"))
	require.NoError(t, err)
	require.Len(t, got.Errors, 1)
	require.Equal(t, model.SeverityError, got.Errors[0].Type)
	require.Equal(t, model.Pos{}, got.Errors[0].Pos)
	require.Contains(t, got.Errors[0].Message, "Install")
	require.Zero(t, p.runs(t))
}

func TestDiagnostics_Success(t *testing.T) {
	t.Parallel()
	p := newProject(t)
	p.script(t, p.output(t, flowResult(p)))

	linter := service.NewLinter(locator{config: true, binary: p.flow}, config(5*time.Second))

	got, err := linter.Diagnostics(t.Context(), p.root, p.file("a.js"))
	require.NoError(t, err)
	require.Equal(t, []model.Diagnostic{
		{Type: model.SeverityError, Message: "Foo: bad", Pos: model.Pos{Line: 4, Ch: 2}},
	}, got.Errors)

	got, err = linter.Diagnostics(t.Context(), p.root, p.file("b.js"))
	require.NoError(t, err)
	require.Equal(t, []model.Diagnostic{
		{Type: model.SeverityWarning, Message: "meh", Pos: model.Pos{Line: 0, Ch: 0}},
	}, got.Errors)

	// settled slots are not reused
	require.Equal(t, 2, p.runs(t))
}

func TestDiagnostics_Coalesced(t *testing.T) {
	t.Parallel()
	p := newProject(t)
	p.script(t, "sleep 1\n"+p.output(t, flowResult(p)))

	linter := service.NewLinter(locator{config: true, binary: p.flow}, config(5*time.Second))

	files := []string{"a.js", "b.js", "a.js", "c.js", "b.js", "a.js"}
	reports := make([]model.FileReport, len(files))
	errs := make([]error, len(files))
	var wg sync.WaitGroup
	for i, name := range files {
		wg.Go(func() {
			reports[i], errs[i] = linter.Diagnostics(t.Context(), p.root, p.file(name))
		})
	}
	wg.Wait()

	require.Equal(t, 1, p.runs(t))
	for i, name := range files {
		require.NoError(t, errs[i])
		switch name {
		case "a.js":
			require.Len(t, reports[i].Errors, 1)
			require.Equal(t, "Foo: bad", reports[i].Errors[0].Message)
		case "b.js":
			require.Len(t, reports[i].Errors, 1)
			require.Equal(t, "meh", reports[i].Errors[0].Message)
		default:
			require.Empty(t, reports[i].Errors)
		}
	}
}

func TestDiagnostics_Timeout(t *testing.T) {
	t.Parallel()
	p := newProject(t).script(t, "exec sleep 5")
	linter := service.NewLinter(locator{config: true, binary: p.flow}, config(100*time.Millisecond))

	start := time.Now()
	got, err := linter.Diagnostics(t.Context(), p.root, p.file("a.js"))
	require.NoError(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, got.Errors, 1)
	require.Equal(t, model.SeverityError, got.Errors[0].Type)
	require.Equal(t, model.Pos{}, got.Errors[0].Pos)
	require.Contains(t, got.Errors[0].Message, "100ms")
}

func TestDiagnostics_Errors(t *testing.T) {
	t.Parallel()

	t.Run("parse", func(t *testing.T) {
		t.Parallel()
		p := newProject(t).script(t, "echo 'Launching Flow server for /src'\nexit 2")
		linter := service.NewLinter(locator{config: true, binary: p.flow}, config(5*time.Second))

		_, err := linter.Diagnostics(t.Context(), p.root, p.file("a.js"))
		require.ErrorIs(t, err, model.ErrParse)
	})

	t.Run("spawn", func(t *testing.T) {
		t.Parallel()
		p := newProject(t).script(t, "echo '{}'")
		require.NoError(t, os.Chmod(p.flow, 0o644))
		linter := service.NewLinter(locator{config: true, binary: p.flow}, config(5*time.Second))

		_, err := linter.Diagnostics(t.Context(), p.root, p.file("a.js"))
		require.ErrorIs(t, err, model.ErrSpawn)
		require.Zero(t, p.runs(t))

		// failures are not cached either
		_, err = linter.Diagnostics(t.Context(), p.root, p.file("a.js"))
		require.ErrorIs(t, err, model.ErrSpawn)
	})
}
