// Package command holds the dispatch table the CLI runs from: per-command
// argument bounds, flag letters, URI scheme permissions, and the user-error
// type handlers report operator mistakes through.
package command

import "fmt"

// Error signals a problem the user can act on (bad arguments, missing
// credentials, a provider saying no), as opposed to a bug. Informational
// errors still terminate the run but print without the failure prefix.
type Error struct {
	Reason        string
	Informational bool
}

func (e *Error) Error() string {
	return "CommandException: " + e.Reason
}

// Errorf builds a user-facing command error.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Infof builds an informational error: the run stops, but the message prints
// as FYI rather than as a failure.
func Infof(format string, args ...interface{}) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...), Informational: true}
}
