package process

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProcessExitedEarly is returned when a process exits before a readiness pattern appears.
	ErrProcessExitedEarly = errors.New("process exited before becoming ready")
	// ErrErrorPatternMatched is returned when an error pattern appears in a process log.
	ErrErrorPatternMatched = errors.New("error pattern found in process log")
	// ErrReadinessTimedOut is returned when no readiness pattern appears before the deadline.
	ErrReadinessTimedOut = errors.New("timed out waiting for process readiness")
)

// LaunchError describes a failed launch together with everything the process logged.
type LaunchError struct {
	Process string
	// Reason is one of ErrProcessExitedEarly, ErrErrorPatternMatched or ErrReadinessTimedOut.
	Reason error
	// Cause is the underlying context error for timeouts, nil otherwise.
	Cause error
	// ExitCode is the exit code when Reason is ErrProcessExitedEarly, -1 when signalled.
	ExitCode   int
	ExitStatus string
	// Pattern is the matched error pattern when Reason is ErrErrorPatternMatched.
	Pattern       string
	Stdout        string
	Stderr        string
	AdditionalLog string
}

func (e *LaunchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s launch failed: %v", e.Process, e.Reason)
	switch {
	case errors.Is(e.Reason, ErrProcessExitedEarly):
		fmt.Fprintf(&b, " (%s)", e.ExitStatus)
	case errors.Is(e.Reason, ErrErrorPatternMatched):
		fmt.Fprintf(&b, " (%q)", e.Pattern)
	case e.Cause != nil:
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	fmt.Fprintf(&b, "\nSTDOUT:\n%s\nSTDERR:\n%s", e.Stdout, e.Stderr)
	if e.AdditionalLog != "" {
		fmt.Fprintf(&b, "\nADDITIONAL LOG:\n%s", e.AdditionalLog)
	}
	return b.String()
}

func (e *LaunchError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Cause}
}
