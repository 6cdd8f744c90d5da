package render

import "fmt"

// BindErrorKind categorizes binding failures.
type BindErrorKind int

const (
	BindErrorUnknown BindErrorKind = iota
	BindErrorMissingVariable
	BindErrorCoercion
	BindErrorExpression
	BindErrorCycle
)

// String returns a string representation of the BindErrorKind
func (k BindErrorKind) String() string {
	switch k {
	case BindErrorMissingVariable:
		return "MISSING_VARIABLE"
	case BindErrorCoercion:
		return "TYPE_COERCION"
	case BindErrorExpression:
		return "EXPRESSION"
	case BindErrorCycle:
		return "EXPRESSION_CYCLE"
	default:
		return "UNKNOWN"
	}
}

// BindError reports that a valid template could not be fully resolved
// against a given value set. Variable names the offending binding when known.
type BindError struct {
	Kind     BindErrorKind
	Variable string
	Detail   string
}

// Error implements the error interface
func (e *BindError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("[%s] variable %q: %s", e.Kind.String(), e.Variable, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Kind.String(), e.Detail)
}

// newBindError creates a BindError for the given kind and variable.
func newBindError(kind BindErrorKind, variable, detail string) *BindError {
	return &BindError{Kind: kind, Variable: variable, Detail: detail}
}
