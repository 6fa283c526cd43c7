// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package unify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DefaultMaxDepth is the nesting bound used when none is configured.
const DefaultMaxDepth = 10

// Decode parses one JSON document into a generic object. Numbers keep their
// literal text. The document must be a single JSON object; arrays, scalars
// and trailing data are rejected. Containers nested deeper than maxDepth are
// replaced by their compact JSON text.
func Decode(data []byte, maxDepth int) (map[string]any, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, fmt.Errorf("decoding: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after document")
	}

	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is %s, not an object", kind(v))
	}
	return limitDepth(doc, 1, maxDepth).(map[string]any), nil
}

// limitDepth walks v, which sits at the given depth, and flattens containers
// found below maxDepth into compact JSON strings.
func limitDepth(v any, depth, maxDepth int) any {
	switch t := v.(type) {
	case map[string]any:
		if depth > maxDepth {
			return compact(t)
		}
		for k, child := range t {
			t[k] = limitDepth(child, depth+1, maxDepth)
		}
		return t
	case []any:
		if depth > maxDepth {
			return compact(t)
		}
		for i, child := range t {
			t[i] = limitDepth(child, depth+1, maxDepth)
		}
		return t
	default:
		return v
	}
}

// Project reads the value at path in doc and renders it as a string.
// A missing key, a JSON null, or a non-object on the way yields nil.
func Project(doc map[string]any, path []string) *string {
	var cur any = doc
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[key]
		if !ok {
			return nil
		}
	}
	return render(cur)
}

func render(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = compact(t)
	}
	return &s
}

func compact(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

func kind(v any) string {
	switch v.(type) {
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
