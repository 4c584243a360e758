package diagnostics

// Classify decides the outcome of a completed pass. Under strict mode warnings
// are promoted to a failure.
func Classify(report Report, strict bool) Outcome {
	switch {
	case len(report.Errors) > 0:
		return Failure(clone(report.Errors))
	case len(report.Warnings) > 0 && strict:
		out := Failure(clone(report.Warnings))
		out.Promoted = true
		return out
	case len(report.Warnings) > 0:
		return SuccessWithWarnings(clone(report.Warnings))
	default:
		return Success()
	}
}

func clone(msgs []string) []string {
	out := make([]string, len(msgs))
	copy(out, msgs)
	return out
}
