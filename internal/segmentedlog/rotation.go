package segmentedlog

import "time"

// SegmentState is an immutable snapshot of the active segment's state at
// the point a rotation decision is made. Mirrors logsegment.Segment's own
// bookkeeping without exposing file handles or any other mutable state.
type SegmentState struct {
	FirstIndex int64
	LastIndex  int64
	Bytes      int64
	CreatedAt  time.Time
}

// RotationPolicy decides whether the active segment should be sealed and a
// new one opened before the next append. Policies are pure functions: no
// IO, no mutation, no global state.
type RotationPolicy interface {
	ShouldRotate(state SegmentState) bool
}

// RotationPolicyFunc adapts an ordinary function to RotationPolicy.
type RotationPolicyFunc func(state SegmentState) bool

func (f RotationPolicyFunc) ShouldRotate(state SegmentState) bool { return f(state) }

// CompositePolicy rotates if any of its sub-policies would rotate.
type CompositePolicy struct {
	policies []RotationPolicy
}

// NewCompositePolicy combines policies with OR semantics.
func NewCompositePolicy(policies ...RotationPolicy) *CompositePolicy {
	return &CompositePolicy{policies: policies}
}

func (c *CompositePolicy) ShouldRotate(state SegmentState) bool {
	for _, p := range c.policies {
		if p.ShouldRotate(state) {
			return true
		}
	}
	return false
}

// SizePolicy rotates once the active segment's byte accounting exceeds
// maxBytes. maxBytes == 0 disables the policy.
type SizePolicy struct {
	maxBytes int64
}

func NewSizePolicy(maxBytes int64) *SizePolicy { return &SizePolicy{maxBytes: maxBytes} }

func (p *SizePolicy) ShouldRotate(state SegmentState) bool {
	if p.maxBytes == 0 {
		return false
	}
	return state.Bytes > p.maxBytes
}

// AgePolicy rotates once the active segment has existed longer than maxAge,
// measured from CreatedAt against now(). maxAge == 0 disables the policy.
type AgePolicy struct {
	maxAge time.Duration
	now    func() time.Time
}

// NewAgePolicy creates an age-triggered rotation policy. If now is nil,
// time.Now is used — this is ambient wall-clock scheduling, not the
// executor's deterministic logical clock, and must never be used inside
// the Executor or LogSegment core.
func NewAgePolicy(maxAge time.Duration, now func() time.Time) *AgePolicy {
	if now == nil {
		now = time.Now
	}
	return &AgePolicy{maxAge: maxAge, now: now}
}

func (p *AgePolicy) ShouldRotate(state SegmentState) bool {
	if p.maxAge == 0 || state.CreatedAt.IsZero() {
		return false
	}
	return p.now().Sub(state.CreatedAt) > p.maxAge
}
