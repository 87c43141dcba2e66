package record

import (
	"fmt"
	"maps"
)

// Document is a schemaless record: a JSON object with an integer "id".
type Document map[string]any

// RecordID returns the document's identifier, or 0 when it has none.
// Validate reports the missing or malformed case.
func (d Document) RecordID() int64 {
	id, err := ParseID(d[IDField])
	if err != nil {
		return 0
	}
	return id
}

// Validate checks that the document carries a whole-number identifier.
func (d Document) Validate() error {
	if _, err := ParseID(d[IDField]); err != nil {
		return fmt.Errorf("document: %w", err)
	}
	return nil
}

// Clone returns a shallow copy.
func (d Document) Clone() Document {
	return maps.Clone(d)
}
