// Package validate turns raw model completions into schema-conformant Go
// values. A completion either decodes into a fully valid value or fails with
// a typed *Error; there is no lenient mode.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Kind classifies why a completion could not be accepted.
type Kind string

const (
	// KindMalformedOutput means the text (after fence stripping) is not JSON.
	KindMalformedOutput Kind = "malformed-output"

	// KindSchemaViolation means the JSON parsed but does not match the
	// target schema.
	KindSchemaViolation Kind = "schema-violation"
)

// Sentinel errors usable with errors.Is against any *Error.
var (
	ErrMalformedOutput = errors.New("malformed output")
	ErrSchemaViolation = errors.New("schema violation")
)

// Error is returned by Decode when a completion is rejected.
type Error struct {
	Kind       Kind
	Violations []string // populated for KindSchemaViolation
	Err        error    // underlying parse error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindMalformedOutput:
		if e.Err != nil {
			return fmt.Sprintf("validate: malformed output: %v", e.Err)
		}
		return "validate: malformed output"
	default:
		return fmt.Sprintf("validate: schema violation: %s", strings.Join(e.Violations, "; "))
	}
}

// Unwrap returns the underlying parse error.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel matching e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrMalformedOutput:
		return e.Kind == KindMalformedOutput
	case ErrSchemaViolation:
		return e.Kind == KindSchemaViolation
	}
	return false
}

const fence = "```"

// StripFences extracts the body of the first fenced code block in raw,
// dropping the fence markers, an optional language tag, and any prose around
// the block. Text without a fence is returned trimmed and otherwise untouched.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	start := strings.Index(text, fence)
	if start == -1 {
		return text
	}
	body := text[start+len(fence):]

	// A language tag is a single token on the opening fence line.
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		tag := strings.TrimSpace(body[:nl])
		if tag == "" || isLanguageTag(tag) {
			body = body[nl+1:]
		}
	}

	if end := strings.Index(body, fence); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if !(r == '-' || r == '_' || r == '+' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// Decode strips fences from raw, parses the remainder strictly as a JSON
// object and validates it against T's struct rules. Fields whose validate
// tag starts with "required" or "present" must be keys of the object.
func Decode[T any](raw string) (T, error) {
	var zero T

	body := StripFences(raw)
	if !json.Valid([]byte(body)) {
		var probe any
		err := json.Unmarshal([]byte(body), &probe)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return zero, &Error{Kind: KindMalformedOutput, Err: err}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil || fields == nil {
		return zero, &Error{
			Kind:       KindSchemaViolation,
			Violations: []string{"expected a JSON object"},
		}
	}

	var violations []string
	for _, key := range requiredKeys(reflect.TypeOf(zero)) {
		v, ok := fields[key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			violations = append(violations, key+": required")
		}
	}
	if len(violations) > 0 {
		return zero, &Error{Kind: KindSchemaViolation, Violations: violations}
	}

	var out T
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return zero, &Error{
				Kind:       KindSchemaViolation,
				Violations: []string{fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)},
				Err:        err,
			}
		}
		return zero, &Error{Kind: KindSchemaViolation, Violations: []string{err.Error()}, Err: err}
	}

	if violations := Struct(out); len(violations) > 0 {
		return zero, &Error{Kind: KindSchemaViolation, Violations: violations}
	}
	return out, nil
}

// requiredKeys lists the JSON names of t's fields whose validate tag starts
// with "required" or "present".
func requiredKeys(t reflect.Type) []string {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("validate")
		if !f.IsExported() || !(strings.HasPrefix(tag, "required") || strings.HasPrefix(tag, "present")) {
			continue
		}
		if name := jsonName(f); name != "" {
			keys = append(keys, name)
		}
	}
	return keys
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
