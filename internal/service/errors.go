package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Service errors.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already exists")
	ErrProviderLinked     = errors.New("provider identity already linked")
	ErrUnknownProvider    = errors.New("unknown auth provider")
)

// ValidationError lists the request fields that failed validation and the
// rule each one broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// ThrottledError is returned when an identifier has exhausted its login attempts.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("too many login attempts, retry after %s", e.RetryAfter)
}
