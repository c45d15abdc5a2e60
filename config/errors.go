package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a resolution failure
type ErrorKind int

const (
	// Unresolvable means no source in the chain yielded both a URL and credentials
	Unresolvable ErrorKind = iota + 1
	// InvalidURL means a present source carried a URL that cannot be used
	InvalidURL
	// InvalidSettings means a settings file exists but cannot be read or parsed
	InvalidSettings
)

func (k ErrorKind) String() string {
	switch k {
	case Unresolvable:
		return "unresolvable"
	case InvalidURL:
		return "invalid URL"
	case InvalidSettings:
		return "invalid settings"
	default:
		return "unknown"
	}
}

// Attempt records why a source in the chain was skipped
type Attempt struct {
	Source string
	Reason string
}

// Error is returned by the resolver. It is always fatal to the command.
type Error struct {
	Kind     ErrorKind
	Source   string
	Err      error
	Attempts []Attempt
}

func (e *Error) Error() string {
	switch e.Kind {
	case Unresolvable:
		var b strings.Builder
		b.WriteString("cannot find Elasticsearch connection details, tried:")
		for i, a := range e.Attempts {
			fmt.Fprintf(&b, "\n  %d. %s: %s", i+1, a.Source, a.Reason)
		}
		return b.String()
	default:
		return fmt.Sprintf("%s in %s: %s", e.Kind, e.Source, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errAbsent marks a source that is not there or is incomplete; the resolver moves on
var errAbsent = errors.New("source absent")

type absentError struct {
	reason string
}

func (e *absentError) Error() string {
	return e.reason
}

func (e *absentError) Is(target error) bool {
	return target == errAbsent
}

func absent(format string, args ...any) error {
	return &absentError{reason: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a resolution error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Kind == kind
}
