package diagnostics

// Status tags an Outcome.
type Status string

const (
	StatusSuccess             Status = "success"
	StatusSuccessWithWarnings Status = "success_with_warnings"
	StatusFailure             Status = "failure"
)

// Outcome is the terminal value of one build pass. Messages carries the warnings
// for StatusSuccessWithWarnings and the failing messages for StatusFailure.
type Outcome struct {
	Status   Status
	Messages []string
	// Promoted is true when a Failure came from warnings under strict mode.
	Promoted bool
}

// Success returns a clean outcome.
func Success() Outcome { return Outcome{Status: StatusSuccess} }

// SuccessWithWarnings returns a passing outcome carrying warnings.
func SuccessWithWarnings(messages []string) Outcome {
	return Outcome{Status: StatusSuccessWithWarnings, Messages: messages}
}

// Failure returns a failing outcome.
func Failure(messages []string) Outcome {
	return Outcome{Status: StatusFailure, Messages: messages}
}

// Succeeded reports whether artifacts from this pass may be staged.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess || o.Status == StatusSuccessWithWarnings
}

func (o Outcome) String() string {
	if o.Status == "" {
		return "none"
	}
	return string(o.Status)
}
