// Package harness runs store scenarios described in YAML.
//
// A scenario drives one document store through a list of steps with a fake
// clock, so debounce timing is exact and runs are reproducible:
//
//	name: scenario_a_debounced_flush
//	description: "Two creates inside one window are written together"
//	initial: "[]"
//	steps:
//	  - create: { id: 1, name: a }
//	  - create: { id: 2, name: b }
//	  - advance: 999ms
//	    expect_file: "[]"
//	  - advance: 1ms
//	    expect_file: '[{"id":1,"name":"a"},{"id":2,"name":"b"}]'
//
// # Steps
//
// Each step performs exactly one operation:
//
//   - create: a document
//   - update: { id, patch }
//   - update_where: { where, patch }
//   - delete: an id
//   - delete_where: field equality filter
//   - advance: a duration; due timers fire and their flushes finish
//   - signal: a termination reason; runs the shutdown hooks
//   - reopen: closes the store and loads it again from its file
//
// and may check the outcome with expect_error (a store error code),
// expect_matched, expect_file (exact file content) and expect_ids (record
// order after the step).
//
// # Golden Files
//
// Every run yields a trace with one line per step and the final file
// content. RunWithGolden compares that snapshot with
// testdata/golden/<name>.golden; regenerate with
//
//	go test ./internal/harness -update
package harness
