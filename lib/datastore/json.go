package datastore

import (
	"encoding/json"
	"io"
)

// DecodeJSON decodes a single JSON value from r. Integral numbers become
// int64, all other numbers float64, so decoded values match what the
// clients return from Get.
func DecodeJSON(r io.Reader) (interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return NormalizeNumbers(v), nil
}

// NormalizeNumbers replaces json.Number values (also inside slices and maps) by int64 or float64.
func NormalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []interface{}:
		for i := range t {
			t[i] = NormalizeNumbers(t[i])
		}
		return t
	case map[string]interface{}:
		for k := range t {
			t[k] = NormalizeNumbers(t[k])
		}
		return t
	default:
		return v
	}
}
