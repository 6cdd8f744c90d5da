package docx

import "fmt"

// FormatErrorKind categorizes container-level parse failures so callers can
// distinguish "not a supported document" from "supported but damaged".
type FormatErrorKind int

const (
	FormatErrorUnknown FormatErrorKind = iota
	FormatErrorBadArchive
	FormatErrorMissingPart
	FormatErrorBadRelationships
	FormatErrorMalformedXML
)

// String returns a string representation of the FormatErrorKind
func (k FormatErrorKind) String() string {
	switch k {
	case FormatErrorBadArchive:
		return "BAD_ARCHIVE"
	case FormatErrorMissingPart:
		return "MISSING_PART"
	case FormatErrorBadRelationships:
		return "BAD_RELATIONSHIPS"
	case FormatErrorMalformedXML:
		return "MALFORMED_XML"
	default:
		return "UNKNOWN"
	}
}

// FormatError reports that the input is not a well-formed document container.
// It is not retryable without a different input.
type FormatError struct {
	Kind FormatErrorKind
	Part string
	Err  error
}

// Error implements the error interface
func (e *FormatError) Error() string {
	if e.Part != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Kind.String(), e.Part, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Kind.String(), e.Err)
}

// Unwrap returns the underlying error
func (e *FormatError) Unwrap() error {
	return e.Err
}

// newFormatError creates a FormatError for the given kind and part.
func newFormatError(kind FormatErrorKind, part string, err error) *FormatError {
	return &FormatError{Kind: kind, Part: part, Err: err}
}
