// Package executor drives a single user-registered state machine against a
// replicated stream of committed operations. It is the deterministic core of
// a service: every apply and every timer firing observes only logical time
// handed to it by the caller, never a real clock, so that two replicas
// driven with the same calls produce identical handler invocations in
// identical order.
package executor

// OperationType classifies an operation as mutating (COMMAND) or read-only
// (QUERY). QUERY operations may not schedule timers or enqueue post-op
// tasks; COMMAND operations may do both.
type OperationType int

const (
	// COMMAND operations mutate state and may schedule side effects.
	COMMAND OperationType = iota
	// QUERY operations must not mutate state, schedule timers, or enqueue tasks.
	QUERY
)

func (t OperationType) String() string {
	switch t {
	case COMMAND:
		return "COMMAND"
	case QUERY:
		return "QUERY"
	default:
		return "UNKNOWN"
	}
}

// OperationId identifies a registered handler and carries the operation's type.
type OperationId struct {
	Name string
	Type OperationType
}

// Commit is a single committed entry delivered to the executor: the
// operation it names, its payload, and the replicated logical time at
// which it was committed. WallClockMillis is "logical" in the sense that
// it is identical on every replica for the same log index — it is never
// read from a real clock inside the executor.
type Commit struct {
	OpId            OperationId
	Payload         []byte
	WallClockMillis int64
}

// Handler processes a Commit's payload and returns the bytes to surface to
// the caller of Apply, or an error that becomes an ApplicationError.
type Handler func(commit Commit) ([]byte, error)
