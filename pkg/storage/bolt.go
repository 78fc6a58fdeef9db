package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	"lukechampine.com/blake3"

	"github.com/virajbhartiya/seqpaxos/pkg/paxos"
)

var (
	entriesBucket = []byte("entries")
	metaBucket    = []byte("meta")

	keyPromise       = []byte("promise")
	keyAcceptedRound = []byte("accepted_round")
	keyDecidedIdx    = []byte("decided_idx")
	keyStopSign      = []byte("stopsign")
	keyCompactedIdx  = []byte("compacted_idx")
	keySnapshot      = []byte("snapshot")
	keySnapshotSum   = []byte("snapshot_sum")
)

// BoltStorage persists the replicated log and the replica's promise state in
// a single bolt database. Every write is its own transaction, so a call that
// returns nil is on disk.
type BoltStorage[T any] struct {
	db *bolt.DB
}

var _ paxos.Storage[[]byte] = (*BoltStorage[[]byte])(nil)

// OpenBoltStorage opens (or creates) dataDir/paxos.db.
func OpenBoltStorage[T any](dataDir string) (*BoltStorage[T], error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(dataDir, "paxos.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot open database at %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(entriesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStorage[T]{db: db}, nil
}

func logLenTx(tx *bolt.Tx) uint64 {
	if k, _ := tx.Bucket(entriesBucket).Cursor().Last(); k != nil {
		return keyIdx(k) + 1
	}
	return compactedTx(tx)
}

func compactedTx(tx *bolt.Tx) uint64 {
	if v := tx.Bucket(metaBucket).Get(keyCompactedIdx); v != nil {
		return keyIdx(v)
	}
	return 0
}

func appendTx[T any](tx *bolt.Tx, entries []T) (uint64, error) {
	b := tx.Bucket(entriesBucket)
	next := logLenTx(tx)
	for _, e := range entries {
		data, err := encode(&e)
		if err != nil {
			return 0, fmt.Errorf("encode entry %d: %w", next, err)
		}
		if err := b.Put(idxKey(next), data); err != nil {
			return 0, err
		}
		next++
	}
	return next, nil
}

// deleteRange removes every entry with index >= from, or < from when below is set.
func deleteRange(tx *bolt.Tx, from uint64, below bool) error {
	b := tx.Bucket(entriesBucket)
	var keys [][]byte
	c := b.Cursor()
	if below {
		for k, _ := c.First(); k != nil && keyIdx(k) < from; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
	} else {
		for k, _ := c.Seek(idxKey(from)); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltStorage[T]) AppendEntries(entries []T) (uint64, error) {
	var n uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		n, err = appendTx(tx, entries)
		return err
	})
	return n, err
}

func (s *BoltStorage[T]) AppendOnPrefix(fromIdx uint64, entries []T) (uint64, error) {
	var n uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := deleteRange(tx, fromIdx, false); err != nil {
			return err
		}
		var err error
		n, err = appendTx(tx, entries)
		return err
	})
	return n, err
}

func (s *BoltStorage[T]) Entries(from, to uint64) ([]T, error) {
	var out []T
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := checkRange(from, to, compactedTx(tx), logLenTx(tx)); err != nil {
			return err
		}
		out = make([]T, 0, to-from)
		c := tx.Bucket(entriesBucket).Cursor()
		for k, v := c.Seek(idxKey(from)); k != nil && keyIdx(k) < to; k, v = c.Next() {
			var e T
			if err := decode(v, &e); err != nil {
				return fmt.Errorf("decode entry %d: %w", keyIdx(k), err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func (s *BoltStorage[T]) LogLen() (uint64, error) {
	var n uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = logLenTx(tx)
		return nil
	})
	return n, err
}

func (s *BoltStorage[T]) putMeta(key []byte, v interface{}) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(key, data)
	})
}

// getMeta decodes key into v and reports whether the key was present.
func (s *BoltStorage[T]) getMeta(key []byte, v interface{}) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(metaBucket).Get(key)
		if data == nil {
			return nil
		}
		found = true
		return decode(data, v)
	})
	return found, err
}

func (s *BoltStorage[T]) deleteMeta(keys ...[]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStorage[T]) SetPromise(n paxos.Ballot) error {
	return s.putMeta(keyPromise, n)
}

func (s *BoltStorage[T]) Promise() (paxos.Ballot, error) {
	var n paxos.Ballot
	_, err := s.getMeta(keyPromise, &n)
	return n, err
}

func (s *BoltStorage[T]) SetAcceptedRound(n paxos.Ballot) error {
	return s.putMeta(keyAcceptedRound, n)
}

func (s *BoltStorage[T]) AcceptedRound() (paxos.Ballot, error) {
	var n paxos.Ballot
	_, err := s.getMeta(keyAcceptedRound, &n)
	return n, err
}

func (s *BoltStorage[T]) SetDecidedIdx(idx uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(keyDecidedIdx, idxKey(idx))
	})
}

func (s *BoltStorage[T]) DecidedIdx() (uint64, error) {
	var idx uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get(keyDecidedIdx); v != nil {
			idx = keyIdx(v)
		}
		return nil
	})
	return idx, err
}

func (s *BoltStorage[T]) SetStopSign(ss *paxos.StopSign) error {
	if ss == nil {
		return s.deleteMeta(keyStopSign)
	}
	return s.putMeta(keyStopSign, ss)
}

func (s *BoltStorage[T]) StopSign() (*paxos.StopSign, error) {
	var ss paxos.StopSign
	found, err := s.getMeta(keyStopSign, &ss)
	if err != nil || !found {
		return nil, err
	}
	return &ss, nil
}

// SetSnapshot stores snap together with its blake3 digest.
func (s *BoltStorage[T]) SetSnapshot(snap *paxos.SnapshotType) error {
	if snap == nil {
		return s.deleteMeta(keySnapshot, keySnapshotSum)
	}
	data, err := encode(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	sum := blake3.Sum256(data)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if err := b.Put(keySnapshot, data); err != nil {
			return err
		}
		return b.Put(keySnapshotSum, sum[:])
	})
}

func (s *BoltStorage[T]) Snapshot() (*paxos.SnapshotType, error) {
	var snap *paxos.SnapshotType
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		data := b.Get(keySnapshot)
		if data == nil {
			return nil
		}
		sum := blake3.Sum256(data)
		if !bytes.Equal(sum[:], b.Get(keySnapshotSum)) {
			return ErrChecksum
		}
		snap = new(paxos.SnapshotType)
		return decode(data, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *BoltStorage[T]) Trim(idx uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if idx <= compactedTx(tx) {
			return nil
		}
		if err := deleteRange(tx, idx, true); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put(keyCompactedIdx, idxKey(idx))
	})
}

func (s *BoltStorage[T]) CompactedIdx() (uint64, error) {
	var idx uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		idx = compactedTx(tx)
		return nil
	})
	return idx, err
}

func (s *BoltStorage[T]) Close() error {
	return s.db.Close()
}
