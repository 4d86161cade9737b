package clangcl

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExecutableNotFound indicates clang-cl is not on the search path
	ErrExecutableNotFound = errors.New("executable not found")

	// ErrArchMismatch indicates the compiler targets the wrong bit width
	ErrArchMismatch = errors.New("target architecture mismatch")

	// ErrVersionUndetectable indicates the version output could not be parsed
	ErrVersionUndetectable = errors.New("compiler version could not be detected")

	// ErrMissingDirectory indicates a directory shipped with clang is missing
	ErrMissingDirectory = errors.New("expected directory not found")

	// ErrMissingLibrary indicates a runtime library shipped with clang is missing
	ErrMissingLibrary = errors.New("expected library not found")
)

// Error wraps an initialization failure with the step that failed and, for
// subprocess steps, the command and its raw output.
type Error struct {
	Op      string   // Step that failed
	Detail  string   // Human readable explanation
	Command []string // Command that was run, if any
	Output  string   // Raw output of Command
	Err     error    // Underlying error, usually one of the sentinels above
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, e.Err)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Command) > 0 {
		fmt.Fprintf(&b, "\n\nRunning the command\n\n%s\n\nwhich returned\n\n%s",
			strings.Join(e.Command, " "), e.Output)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}
