package template

import "fmt"

// BuildError reports a structurally valid document whose placeholder or
// grouping rules are violated. Fragment carries the offending source text so
// the importer can surface it to a human.
type BuildError struct {
	Fragment string
	Reason   string
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.Fragment != "" {
		return fmt.Sprintf("template build error: %s (offending fragment: %q)", e.Reason, e.Fragment)
	}
	return fmt.Sprintf("template build error: %s", e.Reason)
}

// newBuildError creates a BuildError with the offending fragment.
func newBuildError(fragment, reason string) *BuildError {
	return &BuildError{Fragment: fragment, Reason: reason}
}
