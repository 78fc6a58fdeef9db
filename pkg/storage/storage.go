// Package storage implements paxos.Storage in memory and on disk.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
)

var (
	ErrCompacted  = errors.New("storage: requested index is compacted")
	ErrOutOfRange = errors.New("storage: requested index is past the end of the log")
	ErrChecksum   = errors.New("storage: snapshot checksum mismatch")
)

func checkRange(from, to, compacted, logLen uint64) error {
	if from < compacted {
		return fmt.Errorf("entries [%d, %d) below %d: %w", from, to, compacted, ErrCompacted)
	}
	if to > logLen || from > to {
		return fmt.Errorf("entries [%d, %d) with log len %d: %w", from, to, logLen, ErrOutOfRange)
	}
	return nil
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func idxKey(idx uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, idx)
	return k
}

func keyIdx(k []byte) uint64 {
	return binary.BigEndian.Uint64(k)
}
