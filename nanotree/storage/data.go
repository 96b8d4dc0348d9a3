package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/arthur-debert/nanotree/types"
)

// EncodeData serializes a record payload.
func EncodeData(data map[string]interface{}) ([]byte, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode data: %w", err)
	}
	return b, nil
}

// DecodeData parses a payload written by EncodeData. Integral numbers come
// back as int64, others as float64, so orderBy comparisons see the same
// types that were stored.
func DecodeData(b []byte) (map[string]interface{}, error) {
	data := make(map[string]interface{})
	if len(b) == 0 {
		return data, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: failed to decode data: %v", types.ErrCorrupt, err)
	}
	NormalizeNumbers(data)
	return data, nil
}

// NormalizeNumbers replaces json.Number values in data, recursively, with
// int64 or float64.
func NormalizeNumbers(data map[string]interface{}) {
	for k, v := range data {
		data[k] = normalizeValue(v)
	}
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]interface{}:
		NormalizeNumbers(t)
		return t
	case []interface{}:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	}
	return v
}
