package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is a dynamic entity row. Values decoded from stored JSON use
// json.Number for numerics so large ids survive a snapshot round trip
// without float64 precision loss.
type Row map[string]any

// PrimaryKey is the structured identifier of an affected row. Every entity
// table keys rows by a single integer id.
type PrimaryKey struct {
	ID int64 `json:"id"`
}

// MarshalRow serializes a row to JSON with HTML escaping disabled.
// Go's json.Marshal sorts map keys, so output is deterministic and safe to
// compare in golden tests.
func MarshalRow(row Row) ([]byte, error) {
	if row == nil {
		return nil, fmt.Errorf("marshal row: nil row")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(row)); err != nil {
		return nil, fmt.Errorf("marshal row: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return bytes.TrimSpace(buf.Bytes()), nil
}

// UnmarshalRow parses stored JSON into a Row. Numbers are decoded as
// json.Number, not float64.
func UnmarshalRow(data []byte) (Row, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("unmarshal row: empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("unmarshal row: %w", err)
	}
	return row, nil
}

// MarshalPrimaryKey serializes a primary key to its stored JSON form,
// minimally {"id": N}.
func MarshalPrimaryKey(pk PrimaryKey) ([]byte, error) {
	data, err := json.Marshal(pk)
	if err != nil {
		return nil, fmt.Errorf("marshal primary key: %w", err)
	}
	return data, nil
}

// UnmarshalPrimaryKey parses a stored primary key. A malformed payload is a
// capture-quality defect, so the error names the payload to aid operators.
func UnmarshalPrimaryKey(data []byte) (PrimaryKey, error) {
	var pk PrimaryKey
	if err := json.Unmarshal(data, &pk); err != nil {
		return PrimaryKey{}, fmt.Errorf("unmarshal primary key %q: %w", data, err)
	}
	if pk.ID == 0 {
		return PrimaryKey{}, fmt.Errorf("unmarshal primary key %q: missing id", data)
	}
	return pk, nil
}

// ID extracts the integer id field from a row, accepting the numeric types
// a row can hold depending on where it came from (literal int64, json.Number
// from storage, float64 from naive decoding).
func (r Row) ID() (int64, bool) {
	return r.intField("id")
}

// ObjectID extracts the owning object id, when present.
func (r Row) ObjectID() (int64, bool) {
	return r.intField("objectid")
}

// Name returns the display name of the row: the "name" field, falling back
// to "label". Returns "" when neither is a non-empty string.
func (r Row) Name() string {
	for _, key := range []string{"name", "label"} {
		if v, ok := r[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a shallow copy of the row. Snapshot captures clone before
// handing rows to callers so later mutation of the original cannot corrupt
// the undo log.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r Row) intField(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
