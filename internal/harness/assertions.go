package harness

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/dstore/internal/record"
)

// ExpectationError describes one failed step expectation.
type ExpectationError struct {
	Kind     string
	Expected string
	Actual   string
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Kind, e.Expected, e.Actual)
}

// check evaluates the step's expectations. An operation error that was not
// expected is itself a failure.
func (h *Harness) check(event TraceEvent, step Step, opErr error, matched int) []string {
	var failures []string
	fail := func(kind, expected, actual string) {
		failures = append(failures, (&ExpectationError{Kind: kind, Expected: expected, Actual: actual}).Error())
	}

	switch {
	case step.ExpectError != "" && event.Outcome != step.ExpectError:
		fail("expect_error", step.ExpectError, event.Outcome)
	case step.ExpectError == "" && opErr != nil:
		fail("outcome", "ok", opErr.Error())
	}

	if step.ExpectMatched != nil && *step.ExpectMatched != matched {
		fail("expect_matched", fmt.Sprint(*step.ExpectMatched), fmt.Sprint(matched))
	}

	if step.ExpectFile != nil {
		got, err := h.readFile()
		if err != nil {
			fail("expect_file", *step.ExpectFile, err.Error())
		} else if got != *step.ExpectFile {
			fail("expect_file", *step.ExpectFile, got)
		}
	}

	if step.ExpectIDs != nil {
		ids := []int64{}
		for _, doc := range h.store.ReadAll() {
			ids = append(ids, doc.RecordID())
		}
		if !slices.Equal(ids, step.ExpectIDs) {
			fail("expect_ids", fmt.Sprint(step.ExpectIDs), fmt.Sprint(ids))
		}
	}
	return failures
}

// where returns a predicate matching documents whose fields equal every
// value in filter. Values are compared by their JSON encoding so that
// numbers decoded from the file match numbers written in YAML.
func where(filter map[string]any) func(record.Document) bool {
	want := make(map[string]string, len(filter))
	for k, v := range filter {
		want[k] = jsonText(v)
	}
	return func(doc record.Document) bool {
		for k, w := range want {
			v, ok := doc[k]
			if !ok || jsonText(v) != w {
				return false
			}
		}
		return true
	}
}

func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
