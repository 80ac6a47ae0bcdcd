package chat

import (
	"fmt"
	"strings"

	errors "github.com/Laisky/errors/v2"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrJobNotFound     = errors.New("job not found")
	// ErrNotUserMessage is returned when regeneration targets an assistant turn.
	ErrNotUserMessage = errors.New("regeneration must target a user message")
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries one entry per offending request field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// PersistenceError is a failed write of the user's message. Generation never
// starts after one.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrQueueUnavailable means async generation was requested without a job queue.
var ErrQueueUnavailable = errors.New("job queue is not configured")
