// Package schema validates records against CUE definitions.
//
// A store can be given a schema's Validate method as its validator, so that
// created records and merged updates must satisfy a definition such as
//
//	#StreamItem: {
//		id:    int & >0
//		title: string
//		...
//	}
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error describes the first violation found in a value.
type Error struct {
	Definition string
	Field      string
	Message    string
	Pos        token.Pos
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Definition)
	if e.Field != "" {
		b.WriteString(".")
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, " (%s)", e.Pos)
	}
	return b.String()
}

// Schema is a compiled CUE definition. A cue.Context is not safe for
// concurrent use, so Validate serializes callers.
type Schema struct {
	definition string

	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

// Load compiles the CUE file at path and selects definition.
func Load(path, definition string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(src, path, definition)
}

// Compile compiles CUE source and selects definition, e.g. "#Item".
func Compile(src []byte, filename, definition string) (*Schema, error) {
	if !strings.HasPrefix(definition, "#") {
		return nil, fmt.Errorf("schema definition %q must start with #", definition)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, formatError(definition, err))
	}

	def := v.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return nil, fmt.Errorf("compile %s: definition %s not found", filename, definition)
	}
	if err := def.Err(); err != nil {
		return nil, formatError(definition, err)
	}

	return &Schema{definition: definition, ctx: ctx, def: def}, nil
}

// Definition returns the selected definition name.
func (s *Schema) Definition() string {
	return s.definition
}

// Validate checks v, after JSON encoding, against the definition. Every
// required field must be present and concrete.
func (s *Schema) Validate(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode for validation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	val := s.ctx.CompileBytes(data)
	if err := val.Err(); err != nil {
		return formatError(s.definition, err)
	}
	if err := s.def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return formatError(s.definition, err)
	}
	return nil
}

// formatError reduces a CUE error list to its first entry.
func formatError(definition string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	format, args := first.Msg()
	e := &Error{
		Definition: definition,
		Field:      strings.Join(first.Path(), "."),
		Message:    fmt.Sprintf(format, args...),
	}
	if pos := errors.Positions(first); len(pos) > 0 {
		e.Pos = pos[0]
	}
	return e
}
