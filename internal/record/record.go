package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// IDField is the JSON field that carries a record's identifier.
const IDField = "id"

// Record is the constraint every stored value satisfies.
type Record interface {
	RecordID() int64
}

// Validator is implemented by records that can check their own shape.
// The store calls Validate before accepting a created or merged record.
type Validator interface {
	Validate() error
}

// Cloner is implemented by records with reference semantics, such as
// maps. The store keeps its own copy of those.
type Cloner[T any] interface {
	Clone() T
}

// Copy returns rec.Clone() when rec is a Cloner and rec otherwise.
func Copy[T Record](rec T) T {
	if c, ok := any(rec).(Cloner[T]); ok {
		return c.Clone()
	}
	return rec
}

// ErrIdentifierChanged is returned by Merge when a patch would give the
// record a different identifier.
var ErrIdentifierChanged = errors.New("patch changes the record identifier")

// Patch is a set of top-level fields to overwrite on a record.
type Patch map[string]any

// Merge returns a copy of rec with every field of patch overwriting the
// field of the same JSON name. The merge is shallow: nested objects in the
// patch replace nested objects in the record wholesale.
//
// The round trip goes through JSON so it works the same for structs and
// maps. A patch may repeat the current identifier but never change it.
func Merge[T Record](rec T, patch Patch) (T, error) {
	var zero T

	base, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode record %d: %w", rec.RecordID(), err)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &fields); err != nil {
		return zero, fmt.Errorf("record %d is not a JSON object: %w", rec.RecordID(), err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, len(patch))
	}

	for name, value := range patch {
		raw, err := json.Marshal(value)
		if err != nil {
			return zero, fmt.Errorf("encode patch field %q: %w", name, err)
		}
		fields[name] = raw
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return zero, fmt.Errorf("encode merged record: %w", err)
	}

	out, err := Decode[T](merged)
	if err != nil {
		return zero, fmt.Errorf("decode merged record: %w", err)
	}
	if out.RecordID() != rec.RecordID() {
		return zero, ErrIdentifierChanged
	}
	return out, nil
}

// Decode parses a single JSON object into a record. Numbers landing in
// interface values are kept as json.Number so integer identifiers survive
// without float rounding.
func Decode[T Record](data []byte) (T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeAll parses a JSON array of records.
func DecodeAll[T Record](data []byte) ([]T, error) {
	var out []T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// ParseID converts a decoded JSON value into an identifier. It accepts the
// number representations encoding/json and YAML decoders produce and rejects
// anything that is not a whole number.
func ParseID(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("id %q is not a number", n.String())
		}
		return floatID(f)
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("id %d out of range", n)
		}
		return int64(n), nil
	case float64:
		return floatID(n)
	case nil:
		return 0, errors.New("id is missing")
	default:
		return 0, fmt.Errorf("id has unsupported type %T", v)
	}
}

func floatID(f float64) (int64, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("id %v is not an integer", f)
	}
	return int64(f), nil
}
