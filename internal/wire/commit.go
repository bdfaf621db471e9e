// Package wire defines the on-the-wire encoding of executor.Commit values as
// they travel through a Raft log entry: msgpack for compactness and fast
// decode on every follower's Apply path.
package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"replicore/internal/executor"
)

// Commit is the msgpack-encodable twin of executor.Commit. executor stays
// free of any serialization dependency; this package is the only place that
// knows how a Commit crosses the wire.
type Commit struct {
	OpName          string `msgpack:"op"`
	OpType          int    `msgpack:"type"`
	Payload         []byte `msgpack:"payload"`
	WallClockMillis int64  `msgpack:"ts"`
}

// EncodeCommit marshals an executor.Commit for use as a raft.Log payload.
func EncodeCommit(c executor.Commit) ([]byte, error) {
	w := Commit{
		OpName:          c.OpId.Name,
		OpType:          int(c.OpId.Type),
		Payload:         c.Payload,
		WallClockMillis: c.WallClockMillis,
	}
	data, err := msgpack.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("wire: encode commit: %w", err)
	}
	return data, nil
}

// DecodeCommit reverses EncodeCommit.
func DecodeCommit(data []byte) (executor.Commit, error) {
	var w Commit
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return executor.Commit{}, fmt.Errorf("wire: decode commit: %w", err)
	}
	return executor.Commit{
		OpId: executor.OperationId{
			Name: w.OpName,
			Type: executor.OperationType(w.OpType),
		},
		Payload:         w.Payload,
		WallClockMillis: w.WallClockMillis,
	}, nil
}
