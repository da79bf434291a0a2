// Package report turns the output of a flow run into the diagnostics of a single file.
package report

import (
	"path/filepath"
	"strings"

	"github.com/zaggino/brackets-flow/internal/model"
)

// Map returns the diagnostics flow reported for target.
//
// Comment messages of an error are not diagnostics on their own, their
// descriptions are joined and prefixed to every other message of the same
// error. Messages pointing to other files are skipped. The order of flow's
// output is kept.
func Map(target string, raw model.FlowResult) model.FileReport {
	target = canonical(target)
	ret := model.NewFileReport()

	for _, flowErr := range raw.Errors {
		var comments []string
		for _, msg := range flowErr.Message {
			if msg.IsComment() {
				comments = append(comments, msg.Descr)
			}
		}
		prefix := strings.Join(comments, " ")

		severity := model.SeverityWarning
		if flowErr.Level == model.LevelError {
			severity = model.SeverityError
		}

		for _, msg := range flowErr.Message {
			if msg.IsComment() || canonical(msg.Path) != target {
				continue
			}
			text := msg.Descr
			if len(comments) > 0 {
				text = prefix + ": " + msg.Descr
			}
			ret.Errors = append(ret.Errors, model.Diagnostic{
				Type:    severity,
				Message: text,
				Pos: model.Pos{
					Line: zeroBased(msg.Line),
					Ch:   zeroBased(msg.Start),
				},
			})
		}
	}
	return ret
}

func canonical(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

func zeroBased(n int) int {
	if n < 1 {
		return 0
	}
	return n - 1
}
