package logsegment_test

import (
	"bytes"
	"testing"

	"replicore/internal/logsegment"
)

func TestCompressPreservesReads(t *testing.T) {
	dir := t.TempDir()
	seg := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: 0})
	if err := seg.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	payloads := [][]byte{
		bytes.Repeat([]byte("a"), 1024),
		bytes.Repeat([]byte("b"), 512<<10), // spans multiple seekable frames
		[]byte("tiny"),
	}
	for _, p := range payloads {
		if _, err := seg.Append(p); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if err := seg.Compress(); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !seg.IsCompressed() {
		t.Fatal("IsCompressed() = false after Compress")
	}

	for i, want := range payloads {
		got, err := seg.Get(int64(i))
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get(%d) mismatch after compress: len got=%d want=%d", i, len(got), len(want))
		}
	}

	if err := seg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCompressedSegmentRecoversAfterReopen(t *testing.T) {
	dir := t.TempDir()
	seg := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: 0})
	if err := seg.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, p := range [][]byte{{1}, {2, 2}, {3, 3, 3}} {
		if _, err := seg.Append(p); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := seg.Compress(); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	seg2 := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: 0})
	if err := seg2.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer seg2.Close()

	if !seg2.IsCompressed() {
		t.Fatal("reopened segment should still report IsCompressed")
	}
	if first, ok := seg2.FirstIndex(); !ok || first != 0 {
		t.Fatalf("FirstIndex after reopen = %d, %v, want 0, true", first, ok)
	}
	if seg2.LastIndex() != 2 {
		t.Fatalf("LastIndex after reopen = %d, want 2", seg2.LastIndex())
	}
	if seg2.Size() == 0 {
		t.Fatal("Size() after reopen should reflect reconstructed logical extent, got 0")
	}

	got, err := seg2.Get(2)
	if err != nil {
		t.Fatalf("Get(2): %v", err)
	}
	if !bytes.Equal(got, []byte{3, 3, 3}) {
		t.Fatalf("Get(2) after reopen = %v, want [3 3 3]", got)
	}
}

func TestCompressedSegmentRejectsMutation(t *testing.T) {
	dir := t.TempDir()
	seg := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: 0})
	if err := seg.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := seg.Append([]byte("x")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := seg.Compress(); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	defer seg.Close()

	if _, err := seg.Append([]byte("y")); err != logsegment.ErrIllegalState {
		t.Fatalf("Append on compressed segment = %v, want ErrIllegalState", err)
	}
	if err := seg.RemoveAfter(0); err != logsegment.ErrIllegalState {
		t.Fatalf("RemoveAfter on compressed segment = %v, want ErrIllegalState", err)
	}
	if err := seg.Compact(0, nil); err != logsegment.ErrIllegalState {
		t.Fatalf("Compact on compressed segment = %v, want ErrIllegalState", err)
	}
}

func TestCompressIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	seg := logsegment.New(logsegment.Config{Dir: dir, Base: "seg", Number: 0})
	if err := seg.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := seg.Append([]byte("x")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := seg.Compress(); err != nil {
		t.Fatalf("first Compress: %v", err)
	}
	if err := seg.Compress(); err != nil {
		t.Fatalf("second Compress should be a no-op, got: %v", err)
	}
	defer seg.Close()
}
