package session

import (
	"errors"
	"fmt"
)

// Kind classifies a Session failure into the small set of categories a host
// needs to decide how to present it.
type Kind string

const (
	// KindConfig indicates the host's Config or tsconfig is malformed, or
	// the oracle could not open the project it names.
	KindConfig Kind = "config"
	// KindProject indicates the requested file is not part of the project
	// ("source file not found": excluded by the include/exclude patterns or
	// unknown to the program).
	KindProject Kind = "project"
	// KindParse indicates the target file could not be parsed.
	KindParse Kind = "parse"
	// KindResolve is a non-fatal warning: a type could not be resolved and
	// its site degraded to a skip, but the transform otherwise succeeded.
	KindResolve Kind = "resolve"
	// KindInternal indicates a failure in this module's own logic (a
	// synthesis or planning invariant violated), not a fault in the input.
	KindInternal Kind = "internal"
)

// Error is the typed error every Session operation returns on failure, wired
// through errors.Is/errors.As via Unwrap.
type Error struct {
	Kind    Kind
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, path, message string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Message: message, Cause: cause}
}

// AsSessionError returns the first *Error in err's chain, if any.
func AsSessionError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func configError(path, message string, cause error) error {
	return newError(KindConfig, path, message, cause)
}
func projectError(path, message string, cause error) error {
	return newError(KindProject, path, message, cause)
}
func parseError(path, message string, cause error) error {
	return newError(KindParse, path, message, cause)
}
func internalError(path, message string, cause error) error {
	return newError(KindInternal, path, message, cause)
}
