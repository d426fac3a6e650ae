// Package docstore is the document key-value collaborator the quiz core
// persists through: get, set (optionally merging), delete and equality queries
// over named collections of JSON documents.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("document not found")

// Collections used by the portal.
const (
	Quizzes  = "quizzes"
	Progress = "quizProgress"
	Attempts = "quizAttempts"
	Profiles = "profiles"
)

// Document is a decoded JSON object.
type Document map[string]any

// Entry is a document together with its key, as returned by Query.
type Entry struct {
	Key string
	Doc Document
}

// Filter matches documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value any
}

func Eq(field string, value any) Filter { return Filter{Field: field, Value: value} }

type Store interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	// Set writes doc under key. With merge, top-level fields of doc replace
	// those of any existing document and the rest are kept.
	Set(ctx context.Context, collection, key string, doc Document, merge bool) error
	Delete(ctx context.Context, collection, key string) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Entry, error)
}

// Encode converts a JSON-tagged value into a Document.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	return d, nil
}

// Decode fills v from a Document.
func Decode(d Document, v any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	return nil
}

// GetInto loads collection/key and decodes it into v.
func GetInto(ctx context.Context, s Store, collection, key string, v any) error {
	d, err := s.Get(ctx, collection, key)
	if err != nil {
		return err
	}
	return Decode(d, v)
}

// Put encodes v and writes it under key.
func Put(ctx context.Context, s Store, collection, key string, v any, merge bool) error {
	d, err := Encode(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, collection, key, d, merge)
}

// Exists reports whether collection/key is present.
func Exists(ctx context.Context, s Store, collection, key string) (bool, error) {
	_, err := s.Get(ctx, collection, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func matches(d Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := d[f.Field]
		if !ok || !jsonEqual(v, f.Value) {
			return false
		}
	}
	return true
}

// jsonEqual compares values by their JSON encoding so that 3 and 3.0 match.
func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func mergeInto(dst, src Document) Document {
	if dst == nil {
		dst = Document{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// clone deep-copies a document through JSON so callers never share maps.
func clone(d Document) (Document, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
