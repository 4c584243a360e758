package diagnostics

// Report is the ordered list of error and warning messages from one build pass.
type Report struct {
	Errors   []string
	Warnings []string
}

// Empty reports whether the pass produced no messages at all.
func (r Report) Empty() bool {
	return len(r.Errors) == 0 && len(r.Warnings) == 0
}
