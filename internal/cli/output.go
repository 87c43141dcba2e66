package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/dstore/internal/record"
	"github.com/roach88/dstore/internal/store"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1 // a store operation, flush or scenario failed
	ExitUsage   = 2 // bad arguments, config or store file
)

// ExitError is a command failure. Reason is the code shown to the user:
// a store error code such as DUPLICATE_KEY, or an E_* code.
type ExitError struct {
	Code   int
	Reason string
	Msg    string
	Err    error
}

func (e *ExitError) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Failure returns an ExitFailure error reported under reason.
func Failure(reason, msg string, err error) *ExitError {
	return &ExitError{Code: ExitFailure, Reason: reason, Msg: msg, Err: err}
}

// storeFailure reports a failed store operation under the store's own
// error code.
func storeFailure(op string, err error) *ExitError {
	reason := string(store.ErrorCode(err))
	if reason == "" {
		reason = "E_STORE"
	}
	return Failure(reason, op+" failed", err)
}

func usagef(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitUsage, Reason: "E_USAGE", Msg: fmt.Sprintf(format, args...)}
}

func usage(msg string, err error) *ExitError {
	return &ExitError{Code: ExitUsage, Reason: "E_USAGE", Msg: msg, Err: err}
}

// ExitCode maps a command error to a process exit code. Errors that are
// not ExitErrors exit with 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *ExitError
	if errors.As(err, &e) {
		return e.Code
	}
	return ExitFailure
}

// envelope is the --format json output of every command.
type envelope struct {
	Status string       `json:"status"` // "ok" or "error"
	Data   any          `json:"data,omitempty"`
	Error  *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// printer writes command results to stdout.
type printer struct {
	out  io.Writer
	json bool
}

// report writes data followed by fail, if any, and returns fail. In text
// mode data is printed with its String method.
func (p printer) report(data any, fail *ExitError) error {
	if p.json {
		env := envelope{Status: "ok", Data: data}
		if fail != nil {
			env.Status = "error"
			env.Error = &errorDetail{Code: fail.Reason, Message: fail.Error()}
		}
		if err := json.NewEncoder(p.out).Encode(env); err != nil {
			return err
		}
	} else {
		if data != nil {
			fmt.Fprintln(p.out, data)
		}
		if fail != nil {
			fmt.Fprintf(p.out, "Error [%s]: %s\n", fail.Reason, fail.Error())
		}
	}

	if fail != nil {
		return fail
	}
	return nil
}

func (p printer) fail(e *ExitError) error {
	return p.report(nil, e)
}

// documents prints one compact JSON object per line, or a JSON array
// inside the envelope.
func (p printer) documents(docs []record.Document) error {
	if p.json {
		return p.report(docs, nil)
	}
	for _, doc := range docs {
		line, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(p.out, "%s\n", line)
	}
	return nil
}
