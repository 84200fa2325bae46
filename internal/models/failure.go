package models

// FailureKind identifies the class of a user-visible failure. The display strings shown to the
// user are deliberately generic, so the kind is the only way to tell failures apart internally.
type FailureKind int

const (
	// InitFailure means the text completion service could not establish a session. Fatal to chat
	// functionality, shown once as a persistent banner.
	InitFailure FailureKind = iota
	// SendFailure means a completion stream failed before or during fragment delivery. The
	// conversation stays usable.
	SendFailure
	// LiveConnectFailure means a live voice session could not be opened.
	LiveConnectFailure
)

// Failure carries a failure kind together with its user-facing text.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}
