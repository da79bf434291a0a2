package model

import "encoding/json"

type Severity string

const (
	SeverityError   Severity = "problem_type_error"
	SeverityWarning Severity = "problem_type_warning"
)

// Pos is a 0-based position within a file.
type Pos struct {
	Line int `json:"line"`
	Ch   int `json:"ch"`
}

type Diagnostic struct {
	Type    Severity `json:"type"`
	Message string   `json:"message"`
	Pos     Pos      `json:"pos"`
}

// FileReport holds the diagnostics of exactly one file.
type FileReport struct {
	Errors []Diagnostic `json:"errors"`
}

func NewFileReport(diags ...Diagnostic) FileReport {
	return FileReport{Errors: append(make([]Diagnostic, 0, len(diags)), diags...)}
}

// SingleError is a report with one error pinned at the beginning of the file.
// It is used for problems which are not tied to a location.
func SingleError(msg string) FileReport {
	return NewFileReport(Diagnostic{
		Type:    SeverityError,
		Message: msg,
	})
}

// MarshalJSON never emits null for an empty report.
func (r FileReport) MarshalJSON() ([]byte, error) {
	type alias FileReport
	if r.Errors == nil {
		r.Errors = []Diagnostic{}
	}
	return json.Marshal(alias(r))
}
