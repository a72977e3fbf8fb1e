package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a response body that parsed as JSON. A nil Document means the
// body was not JSON (or was the literal null). The concrete type is one of
// Object, Array or Scalar.
type Document interface {
	document()
}

// Object is a JSON mapping.
type Object map[string]any

// Array is a JSON sequence.
type Array []any

// Scalar is a top-level JSON string, number or boolean.
type Scalar struct {
	Value any
}

func (Object) document() {}
func (Array) document()  {}
func (Scalar) document() {}

// ParseDocument decodes body as JSON. It never fails: anything that is not a
// single well-formed JSON value yields nil.
func ParseDocument(body []byte) Document {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	// Trailing garbage after the first value means this was not JSON.
	if dec.More() {
		return nil
	}
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return Object(t)
	case []any:
		return Array(t)
	default:
		return Scalar{Value: t}
	}
}

// Render returns the compact JSON text of a document.
func Render(doc Document) string {
	switch d := doc.(type) {
	case Object:
		return renderValue(map[string]any(d))
	case Array:
		return renderValue([]any(d))
	case Scalar:
		return renderValue(d.Value)
	default:
		return ""
	}
}

// renderValue prints strings verbatim and everything else as compact JSON.
func renderValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// has reports whether the object carries key.
func (o Object) has(key string) bool {
	_, ok := o[key]
	return ok
}

// text returns the rendering of o[key] if present and non-empty.
func (o Object) text(key string) (string, bool) {
	v, ok := o[key]
	if !ok || isEmpty(v) {
		return "", false
	}
	return renderValue(v), true
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
