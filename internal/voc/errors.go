package voc

import "fmt"

// FormatError reports a malformed or unreadable annotation document.
type FormatError struct {
	Path   string // file path, empty for in-memory documents
	Reason string // what was wrong
	Err    error  // underlying cause, may be nil
}

func (e *FormatError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "annotation format: " + msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErrorf(cause error, format string, args ...interface{}) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...), Err: cause}
}

// withPath stamps path onto err when it is a *FormatError.
func withPath(err error, path string) error {
	if fe, ok := err.(*FormatError); ok && fe.Path == "" {
		fe.Path = path
	}
	return err
}
