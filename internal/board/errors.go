package board

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hcl-hz/PMS-board/internal/store"
)

var (
	// ErrUnauthorized is returned when an operation needs an actor and none is present.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the actor lacks the role or ownership an operation needs.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when an issue or comment id does not resolve.
	ErrNotFound = store.ErrNotFound
)

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// orNil returns e only when it recorded at least one field.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
