// Package segmentedlog owns an ordered sequence of logsegment.Segments and
// routes append/read/truncate/compact calls across the segment boundaries
// they introduce, rotating to a new segment under a RotationPolicy so the
// log can grow without bound. This is a domain-stack supplement to the
// single-segment core in internal/logsegment: segment rotation and
// retention is ambient infrastructure around the crash-safety invariants
// logsegment itself owns.
package segmentedlog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"replicore/internal/logging"
	"replicore/internal/logsegment"
)

// Config configures a Log's on-disk layout, rotation policy, and lifecycle.
type Config struct {
	Dir          string
	Base         string
	FileMode     fs.FileMode
	FlushOnWrite bool
	Policy       RotationPolicy // nil disables rotation: one ever-growing segment
	Now          func() time.Time
	Logger       *slog.Logger
}

// Log owns a sequence of logsegment.Segments with strictly increasing base
// indices, routing appends to the active (newest) segment and rotating to
// a fresh one when Policy fires.
type Log struct {
	cfg    Config
	logger *slog.Logger

	segments  []*logsegment.Segment // ordered by base index ascending
	active    atomic.Pointer[logsegment.Segment]
	createdAt time.Time
}

var segmentFileRe = regexp.MustCompile(`^(.+)-(\d+)\.log$`)

// New creates an unopened Log. Call Open before using it.
func New(cfg Config) *Log {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Log{
		cfg:    cfg,
		logger: logging.Default(cfg.Logger).With("component", "segmentedlog"),
	}
}

// Open discovers any existing segment files under Dir, opens them in base
// order, and opens (or creates) the active (newest) segment. A brand-new
// log gets a single empty segment based at index 0.
func (l *Log) Open() error {
	if err := os.MkdirAll(l.cfg.Dir, 0o700); err != nil {
		return fmt.Errorf("segmentedlog: open: %w", err)
	}

	numbers, err := l.discoverSegmentNumbers()
	if err != nil {
		return fmt.Errorf("segmentedlog: open: %w", err)
	}
	if len(numbers) == 0 {
		numbers = []int64{0}
	}

	for _, n := range numbers {
		seg := logsegment.New(logsegment.Config{
			Dir:          l.cfg.Dir,
			Base:         l.cfg.Base,
			Number:       n,
			FileMode:     l.cfg.FileMode,
			FlushOnWrite: l.cfg.FlushOnWrite,
			Logger:       l.cfg.Logger,
		})
		if err := seg.Open(); err != nil {
			return fmt.Errorf("segmentedlog: open segment %d: %w", n, err)
		}
		l.segments = append(l.segments, seg)
	}

	l.active.Store(l.segments[len(l.segments)-1])
	l.createdAt = l.cfg.Now()
	return nil
}

func (l *Log) discoverSegmentNumbers() ([]int64, error) {
	entries, err := os.ReadDir(l.cfg.Dir)
	if err != nil {
		return nil, err
	}
	var numbers []int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := segmentFileRe.FindStringSubmatch(e.Name())
		if m == nil || m[1] != l.cfg.Base {
			continue
		}
		n, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers, nil
}

// ActiveSegment returns the current append-target segment. Safe to call
// from a goroutine other than the one driving Append, since it only needs
// to know which segment is current right now.
func (l *Log) ActiveSegment() *logsegment.Segment {
	return l.active.Load()
}

// Append routes payload to the active segment, rotating to a new segment
// first if the configured RotationPolicy fires.
func (l *Log) Append(payload []byte) (int64, error) {
	active := l.active.Load()
	if l.cfg.Policy != nil && l.cfg.Policy.ShouldRotate(l.activeState(active)) {
		rotated, err := l.rotate()
		if err != nil {
			return 0, err
		}
		active = rotated
	}
	return active.Append(payload)
}

func (l *Log) activeState(active *logsegment.Segment) SegmentState {
	first, _ := active.FirstIndex()
	return SegmentState{
		FirstIndex: first,
		LastIndex:  active.LastIndex(),
		Bytes:      active.Size(),
		CreatedAt:  l.createdAt,
	}
}

// rotate seals the active segment (by leaving it be — nothing more to do,
// since logsegment.Segment has no explicit "seal" operation) and opens a
// new one based at the old active segment's LastIndex+1.
func (l *Log) rotate() (*logsegment.Segment, error) {
	old := l.active.Load()
	next := old.LastIndex() + 1
	if _, ok := old.FirstIndex(); !ok {
		next = old.Number()
	}

	seg := logsegment.New(logsegment.Config{
		Dir:          l.cfg.Dir,
		Base:         l.cfg.Base,
		Number:       next,
		FileMode:     l.cfg.FileMode,
		FlushOnWrite: l.cfg.FlushOnWrite,
		Logger:       l.cfg.Logger,
	})
	if err := seg.Open(); err != nil {
		return nil, fmt.Errorf("segmentedlog: rotate: %w", err)
	}

	l.segments = append(l.segments, seg)
	l.active.Store(seg)
	l.createdAt = l.cfg.Now()
	l.logger.Info("rotated to new segment", "number", next)
	return seg, nil
}

// segmentFor returns the segment whose base index is the greatest one not
// exceeding index, or nil if index falls before the first segment.
func (l *Log) segmentFor(index int64) *logsegment.Segment {
	i := sort.Search(len(l.segments), func(i int) bool {
		return l.segments[i].Number() > index
	})
	if i == 0 {
		return nil
	}
	return l.segments[i-1]
}

// Get reads the entry at index, delegating to whichever segment's range
// covers it. Returns nil if no segment covers the index or the entry is a
// deleted hole.
func (l *Log) Get(index int64) ([]byte, error) {
	seg := l.segmentFor(index)
	if seg == nil {
		return nil, nil
	}
	return seg.Get(index)
}

// GetRange collects entries across [from, to], transparently spanning
// segment boundaries in index order.
func (l *Log) GetRange(from, to int64) ([][]byte, error) {
	var out [][]byte
	for _, seg := range l.segments {
		first, ok := seg.FirstIndex()
		if !ok {
			continue
		}
		last := seg.LastIndex()
		if last < from || first > to {
			continue
		}
		lo, hi := from, to
		if lo < first {
			lo = first
		}
		if hi > last {
			hi = last
		}
		vs, err := seg.GetRange(lo, hi)
		if err != nil {
			return nil, err
		}
		out = append(out, vs...)
	}
	return out, nil
}

// Truncate drops every whole segment beyond after and truncates the
// boundary segment's suffix, preserving the strictly-increasing-base
// invariant. If after falls before every remaining segment's range, the
// log is left with a single fresh empty segment based at after+1.
func (l *Log) Truncate(after int64) error {
	for len(l.segments) > 0 {
		last := l.segments[len(l.segments)-1]
		if last.Number() <= after {
			break
		}
		if err := last.Delete(); err != nil {
			return fmt.Errorf("segmentedlog: truncate: %w", err)
		}
		l.segments = l.segments[:len(l.segments)-1]
	}

	if len(l.segments) == 0 {
		seg := logsegment.New(logsegment.Config{
			Dir:          l.cfg.Dir,
			Base:         l.cfg.Base,
			Number:       after + 1,
			FileMode:     l.cfg.FileMode,
			FlushOnWrite: l.cfg.FlushOnWrite,
			Logger:       l.cfg.Logger,
		})
		if err := seg.Open(); err != nil {
			return fmt.Errorf("segmentedlog: truncate: %w", err)
		}
		l.segments = []*logsegment.Segment{seg}
		l.active.Store(seg)
		l.createdAt = l.cfg.Now()
		return nil
	}

	boundary := l.segments[len(l.segments)-1]
	if err := boundary.RemoveAfter(after); err != nil {
		return fmt.Errorf("segmentedlog: truncate: %w", err)
	}
	l.active.Store(boundary)
	return nil
}

// Compact drops whole leading segments entirely below through, then
// compacts the boundary segment's prefix.
func (l *Log) Compact(through int64) error {
	for len(l.segments) > 1 {
		first := l.segments[0]
		if first.LastIndex() >= through {
			break
		}
		if err := first.Delete(); err != nil {
			return fmt.Errorf("segmentedlog: compact: %w", err)
		}
		l.segments = l.segments[1:]
	}

	if len(l.segments) == 0 {
		return nil
	}
	boundary := l.segments[0]
	first, ok := boundary.FirstIndex()
	if !ok || through <= first {
		return nil
	}
	if through > boundary.LastIndex() {
		through = boundary.LastIndex()
	}
	return boundary.Compact(through, nil)
}

// CompressSealed zstd-compresses every sealed segment (every segment but
// the active one) that isn't already compressed. A segment still receiving
// appends is never compressed — only the tail segment returned by
// ActiveSegment is exempt. Compression is independent of Compact: it
// shrinks the on-disk footprint of a segment's own remaining content, so
// callers typically run this right after Compact has dropped or trimmed
// whatever it can, but a sealed segment with no eligible compaction is
// still a valid compression target.
func (l *Log) CompressSealed() error {
	active := l.ActiveSegment()
	for _, seg := range l.segments {
		if seg == active || seg.IsCompressed() {
			continue
		}
		if err := seg.Compress(); err != nil {
			return fmt.Errorf("segmentedlog: compress sealed: %w", err)
		}
	}
	return nil
}

// Close closes every segment in order.
func (l *Log) Close() error {
	var errs []error
	for _, seg := range l.segments {
		if err := seg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
