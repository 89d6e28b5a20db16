package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrCapacity        = errors.New("local storage quota exceeded")
	ErrUnreachable     = errors.New("remote store unreachable")
	ErrRelationMissing = errors.New("remote relation does not exist")
	ErrPermission      = errors.New("remote permission denied")
	ErrValidation      = errors.New("validation failed")
)

const mib = 1024 * 1024

// CapacityError is returned when a mirror write would exceed the storage threshold.
type CapacityError struct {
	Collection Collection
	Bytes      int
	Limit      int
	Pruned     int // records dropped by the automatic prune, if any
}

func (e *CapacityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "local storage quota exceeded for %s (%.2fMB of %.2fMB)",
		e.Collection, float64(e.Bytes)/mib, float64(e.Limit)/mib)
	if e.Pruned > 0 {
		fmt.Fprintf(&b, "; %d older records were removed automatically", e.Pruned)
	}
	b.WriteString(": delete old records, use fewer or smaller images, or configure the remote backend")
	return b.String()
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// ValidationError collects field-level messages.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// OrNil returns nil when nothing was collected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// RemoteError carries the backend diagnostic (code/message) of a failed remote call.
type RemoteError struct {
	Op      string
	Code    string
	Message string
	Kind    error // one of ErrUnreachable, ErrRelationMissing, ErrPermission, ErrNotFound or nil
}

func (e *RemoteError) Error() string {
	msg := "remote " + e.Op + ": " + e.Message
	if e.Code != "" {
		msg += " (code " + e.Code + ")"
	}
	return msg
}

func (e *RemoteError) Unwrap() error { return e.Kind }
