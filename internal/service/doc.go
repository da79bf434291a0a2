// Package service runs flow for a project and turns its output into per file
// diagnostics.
//
// Overview
// The Linter is the entry point. For every Diagnostics call it checks the
// project opted in (flow config present), that a flow binary exists, and then
// asks the coalescer for the project's flow result. Concurrent calls for files
// of the same project share one flow run; the result is mapped for the file
// each caller asked about.
//
// Runner is a thin, opinionated wrapper around os/exec:
//   - starts the process in the project directory
//   - captures stdout
//   - optionally passes stderr lines to a callback
//   - delivers one Result through a channel
//
// Data flow:
//
//	Linter.Diagnostics      coalesce.Coalescer        Runner
//	    |                        |                       |
//	    | Invoke(root) --------->| check(root) --------->| Run()
//	    |                        |  (one per root)       | os/exec.Start + Wait() in goroutine
//	    |                        |<----- Result ---------| (process exits)
//	    |<--- FlowResult/err ----| json decode           |
//	    | report.Map(file)       |                       |
//
// Invariants:
//   - At most one flow process per project root on behalf of the coalescer.
//   - Each run produces one terminal Result (output or error, never both).
//   - A non-zero exit status is not an error, flow exits 2 when it found errors.
//   - Timeouts and a missing binary are diagnostics, spawn and parse failures
//     are errors.
package service
