package entity

// Severity is the level of a user facing report.
type Severity int

const (
	// SeverityInfo is informational.
	SeverityInfo Severity = iota
	// SeverityWarning is a recoverable problem.
	SeverityWarning
	// SeverityError is a failure.
	SeverityError
)

// String returns a human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// InputKind names the value requested from the user.
type InputKind string

const (
	// InputHost requests an ssh host alias.
	InputHost InputKind = "host"
	// InputEnvironment requests a virtual environment path.
	InputEnvironment InputKind = "environment"
)

// InputRequest asks the editor for a free form value.
type InputRequest struct {
	Kind    InputKind `json:"kind"`
	Prompt  string    `json:"prompt"`
	Default string    `json:"default,omitempty"`
	Choices []string  `json:"choices,omitempty"`
}

// InputResponse is the editor's answer to an InputRequest.
type InputResponse struct {
	Value     string `json:"value"`
	Cancelled bool   `json:"cancelled"`
}
