package wire_test

import (
	"bytes"
	"testing"

	"replicore/internal/executor"
	"replicore/internal/wire"
)

func TestEncodeDecodeCommitRoundTrips(t *testing.T) {
	in := executor.Commit{
		OpId:            executor.OperationId{Name: "set", Type: executor.COMMAND},
		Payload:         []byte("value"),
		WallClockMillis: 1234,
	}

	data, err := wire.EncodeCommit(in)
	if err != nil {
		t.Fatalf("EncodeCommit: %v", err)
	}

	out, err := wire.DecodeCommit(data)
	if err != nil {
		t.Fatalf("DecodeCommit: %v", err)
	}
	if out.OpId != in.OpId || !bytes.Equal(out.Payload, in.Payload) || out.WallClockMillis != in.WallClockMillis {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestDecodeCommitRejectsGarbage(t *testing.T) {
	if _, err := wire.DecodeCommit([]byte("not msgpack")); err == nil {
		t.Fatal("expected decode error for non-msgpack input")
	}
}
