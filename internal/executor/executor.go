package executor

import (
	"fmt"
	"log/slog"

	"replicore/internal/logging"
)

// Executor applies committed operations to a set of registered handlers and
// drives a deterministic, logical-time-only scheduler for timer callbacks.
//
// An Executor is single-threaded: every method must be called from the same
// goroutine (typically the goroutine driving raft.FSM.Apply for one Raft
// group). There is no internal locking — the absence of cross-goroutine
// mutation is the correctness invariant, not something the Executor
// enforces for you.
type Executor struct {
	logger *slog.Logger

	handlers map[string]Handler
	sched    *schedule

	postOpTasks []func()

	// curOpType and curTimestamp are non-nil/meaningful only while a call to
	// Apply or Tick is on the stack (including while draining post-op tasks
	// or firing a due scheduled task that Apply/Tick triggered).
	curOpType    *OperationType
	curTimestamp int64
}

// New creates an empty Executor. Register handlers with Register before
// calling Apply.
func New(logger *slog.Logger) *Executor {
	return &Executor{
		logger:   logging.Default(logger).With("component", "executor"),
		handlers: make(map[string]Handler),
		sched:    &schedule{},
	}
}

// Register associates an operation identifier with the handler that applies
// it. Registering the same name twice replaces the previous handler.
func (e *Executor) Register(opId OperationId, h Handler) error {
	if opId.Name == "" {
		return fmt.Errorf("executor: register: operation name must not be empty")
	}
	if h == nil {
		return fmt.Errorf("executor: register: handler must not be nil")
	}
	e.handlers[opId.Name] = h
	return nil
}

// Apply dispatches commit to its registered handler, then drains any post-op
// tasks the handler enqueued via Execute — in FIFO order, exactly once,
// even if the handler returned an error or panicked.
func (e *Executor) Apply(commit Commit) (result []byte, err error) {
	opType := commit.OpId.Type
	e.curOpType = &opType
	e.curTimestamp = commit.WallClockMillis
	defer func() {
		e.drainPostOpTasks()
		e.curOpType = nil
	}()

	h, ok := e.handlers[commit.OpId.Name]
	if !ok {
		return nil, &unknownOperationError{OpId: commit.OpId}
	}

	result, invokeErr := e.safeInvoke(h, commit)
	if invokeErr != nil {
		return nil, &ApplicationError{OpId: commit.OpId, Err: invokeErr}
	}
	return result, nil
}

// Execute enqueues a zero-argument callback to run immediately after the
// current handler returns, in FIFO order relative to other calls made
// during the same apply. Must be called from within a COMMAND.
func (e *Executor) Execute(task func()) error {
	if !e.inCommand() {
		return ErrIllegalContext
	}
	e.postOpTasks = append(e.postOpTasks, task)
	return nil
}

// Schedule arranges for task to fire once, delayMillis logical milliseconds
// after the current operation's timestamp. Must be called from within a
// COMMAND.
func (e *Executor) Schedule(delayMillis int64, task func()) (*Scheduled, error) {
	return e.scheduleAt(delayMillis, 0, task)
}

// ScheduleRepeating arranges for task to fire initialDelayMillis after the
// current timestamp, then every intervalMillis thereafter, until cancelled.
// Must be called from within a COMMAND.
func (e *Executor) ScheduleRepeating(initialDelayMillis, intervalMillis int64, task func()) (*Scheduled, error) {
	if intervalMillis <= 0 {
		return nil, fmt.Errorf("executor: schedule: interval must be positive for a repeating task")
	}
	return e.scheduleAt(initialDelayMillis, intervalMillis, task)
}

func (e *Executor) scheduleAt(delayMillis, intervalMillis int64, task func()) (*Scheduled, error) {
	if !e.inCommand() {
		return nil, ErrIllegalContext
	}
	fireAt := e.curTimestamp + delayMillis
	t := e.sched.newTask(fireAt, intervalMillis, task)
	e.sched.insert(t)
	return &Scheduled{task: t}, nil
}

// Tick advances the executor's view of logical time to t, firing every
// scheduled task whose fire time is strictly less than t, in ascending
// fire-time order (FIFO among equal times). Periodic tasks are reinserted
// at firingTime + interval, so drift never compounds against the caller's
// tick argument. Never fails; a tick with nothing due is a no-op.
func (e *Executor) Tick(t int64) {
	for {
		front := e.sched.peekFront()
		if front == nil || !(front.time < t) {
			return
		}
		e.sched.popFront()
		if front.cancelled {
			continue
		}

		opType := COMMAND
		e.curOpType = &opType
		e.curTimestamp = front.time
		e.runTaskSafely(front.callback)
		e.drainPostOpTasks()
		e.curOpType = nil

		if front.interval > 0 && !front.cancelled {
			// Reinsert the same task so a Scheduled handle keeps referring to
			// it across firings; a fresh seq keeps it behind equal-time tasks.
			front.time += front.interval
			front.seq = e.sched.nextSeq
			e.sched.nextSeq++
			e.sched.insert(front)
		}
	}
}

// Timestamp returns the logical timestamp of the operation or scheduled
// task currently executing. Only meaningful while called from within a
// handler, post-op task, or scheduled callback.
func (e *Executor) Timestamp() int64 {
	return e.curTimestamp
}

// OperationType returns the type of the operation currently executing and
// whether any operation is in flight at all. Outside Apply/Tick, ok is false.
func (e *Executor) OperationType() (opType OperationType, ok bool) {
	if e.curOpType == nil {
		return 0, false
	}
	return *e.curOpType, true
}

func (e *Executor) inCommand() bool {
	return e.curOpType != nil && *e.curOpType == COMMAND
}

// drainPostOpTasks runs every queued post-op task in FIFO order, clearing
// the queue. Each task's error (panic or otherwise) is logged and
// swallowed; it never prevents later tasks from running.
func (e *Executor) drainPostOpTasks() {
	for len(e.postOpTasks) > 0 {
		task := e.postOpTasks[0]
		e.postOpTasks = e.postOpTasks[1:]
		e.runTaskSafely(task)
	}
}

// runTaskSafely invokes a post-op or scheduled-timer callback, recovering
// from panics so that one task's failure never aborts its siblings.
func (e *Executor) runTaskSafely(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task panicked", "recovered", r)
		}
	}()
	task()
}

// safeInvoke calls the handler, converting a panic into an error so Apply
// can surface it as an ApplicationError (rather than crashing the service
// goroutine mid-apply, which would leave post-op tasks undrained).
func (e *Executor) safeInvoke(h Handler, commit Commit) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(commit)
}
