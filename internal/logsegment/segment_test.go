package logsegment_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"replicore/internal/logsegment"
)

func openSegment(t *testing.T, dir string, number int64) *logsegment.Segment {
	t.Helper()
	seg := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: number})
	if err := seg.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = seg.Close() })
	return seg
}

// Property 6: append monotonicity.
func TestAppendMonotonicity(t *testing.T) {
	seg := openSegment(t, t.TempDir(), 0)

	for i, payload := range [][]byte{{0x01}, {0x02}, {0x03}} {
		idx, err := seg.Append(payload)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if idx != int64(i) {
			t.Fatalf("Append #%d returned index %d, want %d", i, idx, i)
		}
	}
	if first, ok := seg.FirstIndex(); !ok || first != 0 {
		t.Fatalf("FirstIndex = %d, %v, want 0, true", first, ok)
	}
	if seg.LastIndex() != 2 {
		t.Fatalf("LastIndex = %d, want 2", seg.LastIndex())
	}
}

// Property 7: read-after-write, byte-for-byte.
func TestReadAfterWrite(t *testing.T) {
	seg := openSegment(t, t.TempDir(), 0)

	payload := []byte("hello segment")
	idx, err := seg.Append(payload)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := seg.Get(idx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Get(%d) = %q, want %q", idx, got, payload)
	}
}

// Scenario D / property 8: tombstone read.
func TestRemoveAfterTombstonesSuffix(t *testing.T) {
	seg := openSegment(t, t.TempDir(), 0)

	a, _ := seg.Append([]byte("A"))
	_, _ = seg.Append([]byte("B"))
	_, _ = seg.Append([]byte("C"))

	if err := seg.RemoveAfter(0); err != nil {
		t.Fatalf("RemoveAfter: %v", err)
	}

	if v, err := seg.Get(1); err != nil || v != nil {
		t.Fatalf("Get(1) after truncate = %v, %v, want nil, nil", v, err)
	}
	if v, err := seg.Get(a); err != nil || !bytes.Equal(v, []byte("A")) {
		t.Fatalf("Get(0) after truncate = %q, %v, want A, nil", v, err)
	}
	if seg.LastIndex() != 0 {
		t.Fatalf("LastIndex = %d, want 0", seg.LastIndex())
	}

	idx, err := seg.Append([]byte("D"))
	if err != nil {
		t.Fatalf("Append D: %v", err)
	}
	if idx != 1 {
		t.Fatalf("Append D returned %d, want 1", idx)
	}
	v, err := seg.Get(1)
	if err != nil || !bytes.Equal(v, []byte("D")) {
		t.Fatalf("Get(1) = %q, %v, want D, nil", v, err)
	}
}

// RemoveAfter below the segment's base index clears it entirely.
func TestRemoveAfterBelowBaseClears(t *testing.T) {
	seg := openSegment(t, t.TempDir(), 5)

	_, _ = seg.Append([]byte("A"))
	_, _ = seg.Append([]byte("B"))

	if err := seg.RemoveAfter(2); err != nil {
		t.Fatalf("RemoveAfter: %v", err)
	}
	if _, ok := seg.FirstIndex(); ok {
		t.Fatalf("segment should be empty after clearing remove")
	}
	if !seg.IsEmpty() {
		t.Fatalf("IsEmpty() = false, want true")
	}
}

// Scenario E / property 9: compaction preservation with a replacement.
func TestCompactWithReplacement(t *testing.T) {
	seg := openSegment(t, t.TempDir(), 5)

	for i := 5; i <= 10; i++ {
		if _, err := seg.Append([]byte{byte(i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if err := seg.Compact(7, &logsegment.Replacement{Payload: []byte("X")}); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	first, ok := seg.FirstIndex()
	if !ok || first != 7 {
		t.Fatalf("FirstIndex = %d, %v, want 7, true", first, ok)
	}
	v, err := seg.Get(7)
	if err != nil || !bytes.Equal(v, []byte("X")) {
		t.Fatalf("Get(7) = %q, %v, want X, nil", v, err)
	}
	for i := 8; i <= 10; i++ {
		v, err := seg.Get(int64(i))
		if err != nil || v == nil || v[0] != byte(i) {
			t.Fatalf("Get(%d) = %v, %v, want [%d]", i, v, err, i)
		}
	}
	if v, err := seg.Get(6); err != nil || v != nil {
		t.Fatalf("Get(6) after compact = %v, %v, want nil, nil (out of range)", v, err)
	}
}

// Scenario F / property 10: compaction crash recovery from history files.
func TestCompactionCrashRecovery(t *testing.T) {
	dir := t.TempDir()
	seg := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: 5})
	if err := seg.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 5; i <= 10; i++ {
		if _, err := seg.Append([]byte{byte(i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate a crash between step 6 (history written) and step 8
	// (history deleted): copy the live files to the history paths by hand,
	// the way Compact itself would have, and leave them there.
	copyRaw(t, filepath.Join(dir, "seg-5.log"), filepath.Join(dir, "seg-5.history.log"))
	copyRaw(t, filepath.Join(dir, "seg-5.index"), filepath.Join(dir, "seg-5.history.index"))

	seg2 := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: 5})
	if err := seg2.Open(); err != nil {
		t.Fatalf("Open after simulated crash: %v", err)
	}
	defer seg2.Close()

	if _, err := os.Stat(filepath.Join(dir, "seg-5.history.log")); !os.IsNotExist(err) {
		t.Fatalf("history file should be cleaned up after recovery, stat err = %v", err)
	}

	first, ok := seg2.FirstIndex()
	if !ok || first != 5 || seg2.LastIndex() != 10 {
		t.Fatalf("recovered segment range = [%d,%d] ok=%v, want [5,10] true", first, seg2.LastIndex(), ok)
	}
	for i := 5; i <= 10; i++ {
		v, err := seg2.Get(int64(i))
		if err != nil || v == nil || v[0] != byte(i) {
			t.Fatalf("Get(%d) after recovery = %v, %v, want [%d]", i, v, err, i)
		}
	}
}

func copyRaw(t *testing.T, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read %s: %v", src, err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", dst, err)
	}
}

func TestGetRangeReturnsActivePrefix(t *testing.T) {
	seg := openSegment(t, t.TempDir(), 0)
	for _, p := range [][]byte{{1}, {2}, {3}, {4}} {
		if _, err := seg.Append(p); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := seg.RemoveAfter(3); err != nil {
		t.Fatalf("RemoveAfter: %v", err)
	}
	// Re-tombstone index 1 directly isn't exposed; instead verify range
	// over the still-ACTIVE prefix returns everything in order.
	got, err := seg.GetRange(0, 3)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("GetRange returned %d entries, want 4", len(got))
	}
}

func TestReopenPreservesState(t *testing.T) {
	dir := t.TempDir()
	seg := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: 0})
	if err := seg.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, p := range [][]byte{{1}, {2}, {3}} {
		if _, err := seg.Append(p); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	seg2 := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: 0})
	if err := seg2.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer seg2.Close()
	if seg2.LastIndex() != 2 {
		t.Fatalf("LastIndex after reopen = %d, want 2", seg2.LastIndex())
	}
	v, err := seg2.Get(1)
	if err != nil || len(v) != 1 || v[0] != 2 {
		t.Fatalf("Get(1) after reopen = %v, %v, want [2]", v, err)
	}
}

func TestOpenAlreadyOpenIsIllegalState(t *testing.T) {
	seg := openSegment(t, t.TempDir(), 0)
	if err := seg.Open(); err == nil {
		t.Fatalf("Open on already-open segment should fail")
	}
}

func TestOperationsAfterCloseAreIllegalState(t *testing.T) {
	seg := openSegment(t, t.TempDir(), 0)
	if err := seg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := seg.Append([]byte("x")); err != logsegment.ErrIllegalState {
		t.Fatalf("Append after close = %v, want ErrIllegalState", err)
	}
	if err := seg.Close(); err != logsegment.ErrIllegalState {
		t.Fatalf("double Close = %v, want ErrIllegalState", err)
	}
}

func TestDeleteRemovesAllFiles(t *testing.T) {
	dir := t.TempDir()
	seg := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: 0})
	if err := seg.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := seg.Append([]byte("x")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := seg.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "seg-0.log")); !os.IsNotExist(err) {
		t.Fatalf("data file should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "seg-0.index")); !os.IsNotExist(err) {
		t.Fatalf("index file should be removed, stat err = %v", err)
	}
}
