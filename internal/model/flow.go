package model

// CommentType marks a message which annotates the other messages of the same
// error instead of pointing at a location on its own.
const CommentType = "Comment"

// LevelError is the only level reported as an error, anything else is a warning.
const LevelError = "error"

// FlowResult is the output of `flow --show-all-errors --json`.
// Only the fields the report needs are decoded.
type FlowResult struct {
	Passed  bool        `json:"passed"`
	Version string      `json:"flowVersion,omitempty"`
	Errors  []FlowError `json:"errors"`
}

type FlowError struct {
	Kind    string        `json:"kind,omitempty"`
	Level   string        `json:"level"`
	Message []FlowMessage `json:"message"`
}

// FlowMessage positions are 1-based.
type FlowMessage struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Descr   string `json:"descr"`
	Line    int    `json:"line"`
	EndLine int    `json:"endline,omitempty"`
	Start   int    `json:"start"`
	End     int    `json:"end,omitempty"`
}

func (m FlowMessage) IsComment() bool {
	return m.Type == CommentType
}
