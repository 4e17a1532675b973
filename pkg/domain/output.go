package domain

// SessionState is the lifecycle of an interpreter subprocess.
type SessionState string

const (
	SessionStarting   SessionState = "starting"
	SessionRunning    SessionState = "running"
	SessionTerminated SessionState = "terminated"
)

// OutputRecord is the decoded result of one evaluation.
//
// Evaluation errors reported by the interpreter are ordinary data carried in
// Stderr. Err is only set when the driver itself gave up on the request
// (ErrInterpreterTerminated, ErrEvaluationTimeout, ErrProtocolDesync, ...),
// in which case Stdout and Stderr are empty.
type OutputRecord[M any] struct {
	Stdout string `json:"stdout"`

	// Stderr accumulated since the previous frame closed, trimmed.
	// Empty means the evaluation wrote nothing to stderr.
	Stderr string `json:"stderr,omitempty"`

	Metadata M `json:"metadata"`

	// Generation is the session generation that produced the record.
	Generation uint64 `json:"generation"`

	Err error `json:"-"`
}

// HasStderr reports whether the evaluation produced error output.
func (r OutputRecord[M]) HasStderr() bool {
	return r.Stderr != ""
}

// Failed reports whether the driver dropped the request instead of answering it.
func (r OutputRecord[M]) Failed() bool {
	return r.Err != nil
}
