package core

// Reporter collects non-fatal failures: rejected rows, failed statements,
// tables that could not be read.
type Reporter interface {
	// Failed records that subject could not be processed because of reason.
	Failed(subject, reason string)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(subject, reason string)

// Failed calls f(subject, reason).
func (f ReporterFunc) Failed(subject, reason string) {
	f(subject, reason)
}
