package errors

import stderr "errors"

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

var (
	// NoHostConfiguredError reports that an operation needs a remote host and none is set.
	NoHostConfiguredError = New("no remote host configured")
	// NotAttachedError reports that no remote language server is attached to the session.
	NotAttachedError = New("no remote language server attached")
)

// IsNotAttached reports whether the error is caused by a missing remote language server.
func IsNotAttached(e error) bool {
	return stderr.Is(e, NotAttachedError)
}
