package contracts

import (
	"encoding/json"
	"fmt"
)

// Document is an opaque structured message payload. It is carried on the wire
// as UTF-8 encoded JSON and round-trips losslessly through Marshal and
// ParseDocument.
type Document map[string]interface{}

// Marshal serializes the document to its wire form.
func (d Document) Marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

// ParseDocument decodes a wire payload into a Document. Malformed payloads
// return an error; callers treat this as a per-message failure.
func ParseDocument(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return d, nil
}

// Has reports whether the document contains the given field.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// GetString returns the named field if it is a string.
func (d Document) GetString(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns the named field if it is a number. JSON numbers decode as
// float64, so fractional values are truncated toward zero.
func (d Document) GetInt(key string) (int, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
