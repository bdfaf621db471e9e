package executor

import "sort"

// scheduledTask is one entry in the executor's ordered schedule. Tasks are
// kept sorted by (time, seq) so that ticking observes a deterministic
// firing order: ascending logical time, FIFO among equal times.
type scheduledTask struct {
	seq       int64
	time      int64
	interval  int64 // 0 means one-shot
	callback  func()
	cancelled bool
}

// Scheduled is the handle returned by Executor.Schedule. Cancel is
// idempotent: calling it more than once, or calling it after the task has
// already fired as a one-shot, has no effect.
type Scheduled struct {
	task *scheduledTask
}

// Cancel marks the task cancelled; Tick discards a cancelled task instead of
// firing it. Called from inside the task's own callback, it prevents a
// periodic task's future firings.
func (s *Scheduled) Cancel() {
	if s == nil || s.task == nil {
		return
	}
	s.task.cancelled = true
}

// schedule is the ordered-by-(time,seq) list of pending tasks, owned
// exclusively by a single Executor.
type schedule struct {
	tasks   []*scheduledTask
	nextSeq int64
}

// insert places t into the schedule at the position given by binary search
// over time, preserving earlier-scheduled tasks ahead of later ones with an
// equal time. This holds because the slice is already sorted by (time, seq)
// and a freshly assigned seq is always greater than every existing one.
func (s *schedule) insert(t *scheduledTask) {
	idx := sort.Search(len(s.tasks), func(i int) bool {
		return s.tasks[i].time > t.time
	})
	s.tasks = append(s.tasks, nil)
	copy(s.tasks[idx+1:], s.tasks[idx:])
	s.tasks[idx] = t
}

// peekFront returns the earliest-scheduled task without removing it, or nil
// if the schedule is empty.
func (s *schedule) peekFront() *scheduledTask {
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[0]
}

// popFront removes and returns the earliest-scheduled task.
func (s *schedule) popFront() *scheduledTask {
	t := s.tasks[0]
	s.tasks = s.tasks[1:]
	return t
}

func (s *schedule) newTask(fireAt, interval int64, cb func()) *scheduledTask {
	t := &scheduledTask{
		seq:      s.nextSeq,
		time:     fireAt,
		interval: interval,
		callback: cb,
	}
	s.nextSeq++
	return t
}

// len reports the number of pending (not necessarily non-cancelled) tasks.
func (s *schedule) len() int {
	return len(s.tasks)
}
