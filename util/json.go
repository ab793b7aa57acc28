package util

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// JSONObject is a decoded JSON object as backends send it.
type JSONObject = map[string]any

// ParseJSONObject decodes body, keeping numbers as json.Number so large ids
// survive.
func ParseJSONObject(body []byte) (JSONObject, error) {
	var obj JSONObject
	if err := decodeJSON(body, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// ParseJSONArray decodes a top-level array; non-object elements are kept as is.
func ParseJSONArray(body []byte) ([]any, error) {
	var arr []any
	if err := decodeJSON(body, &arr); err != nil {
		return nil, err
	}
	return arr, nil
}

func decodeJSON(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

// FirstString returns the first key holding a non-empty scalar, rendered as
// a string.
func FirstString(obj JSONObject, keys ...string) string {
	for _, k := range keys {
		if s := scalarString(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// FirstInt returns the first key holding a number, or 0.
func FirstInt(obj JSONObject, keys ...string) int64 {
	for _, k := range keys {
		switch t := obj[k].(type) {
		case json.Number:
			if n, err := t.Int64(); err == nil {
				return n
			}
			if f, err := t.Float64(); err == nil {
				return int64(f)
			}
		case float64:
			return int64(t)
		case string:
			if n, err := strconv.ParseInt(t, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

// Bool reads a boolean that some servers send as a string or number.
func Bool(obj JSONObject, key string) (value, present bool) {
	switch t := obj[key].(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		return b, err == nil
	case json.Number:
		return t.String() != "0", true
	}
	return false, false
}

// Object returns a nested object or nil.
func Object(obj JSONObject, key string) JSONObject {
	o, _ := obj[key].(map[string]any)
	return o
}

// Array returns a nested array; a single value is treated as a one element
// array.
func Array(obj JSONObject, key string) []any {
	switch t := obj[key].(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

// ObjectOrID splits a value that is either an inline object or a bare id.
func ObjectOrID(v any) (JSONObject, string) {
	switch t := v.(type) {
	case map[string]any:
		return t, FirstString(t, "id", "href", "url")
	case string:
		return nil, t
	}
	return nil, ""
}

// Has reports whether any of the keys is present.
func Has(obj JSONObject, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}
