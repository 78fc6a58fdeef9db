package storage

import (
	"github.com/google/btree"
	sync "github.com/sasha-s/go-deadlock"

	"github.com/virajbhartiya/seqpaxos/pkg/paxos"
)

type logItem[T any] struct {
	idx   uint64
	entry T
}

func lessItem[T any](a, b logItem[T]) bool { return a.idx < b.idx }

// MemoryStorage keeps the log in a B-tree ordered by index. It loses
// everything on restart and is meant for tests and simulations.
type MemoryStorage[T any] struct {
	mu sync.RWMutex

	log       *btree.BTreeG[logItem[T]]
	compacted uint64

	promise       paxos.Ballot
	acceptedRound paxos.Ballot
	decided       uint64
	stopSign      *paxos.StopSign
	snapshot      *paxos.SnapshotType
}

var _ paxos.Storage[[]byte] = (*MemoryStorage[[]byte])(nil)

func NewMemoryStorage[T any]() *MemoryStorage[T] {
	return &MemoryStorage[T]{
		log: btree.NewG[logItem[T]](32, lessItem[T]),
	}
}

func (m *MemoryStorage[T]) logLen() uint64 {
	return m.compacted + uint64(m.log.Len())
}

func (m *MemoryStorage[T]) append(entries []T) uint64 {
	next := m.logLen()
	for _, e := range entries {
		m.log.ReplaceOrInsert(logItem[T]{idx: next, entry: e})
		next++
	}
	return next
}

func (m *MemoryStorage[T]) AppendEntries(entries []T) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.append(entries), nil
}

func (m *MemoryStorage[T]) AppendOnPrefix(fromIdx uint64, entries []T) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		last, ok := m.log.Max()
		if !ok || last.idx < fromIdx {
			break
		}
		m.log.DeleteMax()
	}
	return m.append(entries), nil
}

func (m *MemoryStorage[T]) Entries(from, to uint64) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := checkRange(from, to, m.compacted, m.logLen()); err != nil {
		return nil, err
	}
	out := make([]T, 0, to-from)
	m.log.AscendRange(logItem[T]{idx: from}, logItem[T]{idx: to}, func(it logItem[T]) bool {
		out = append(out, it.entry)
		return true
	})
	return out, nil
}

func (m *MemoryStorage[T]) LogLen() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logLen(), nil
}

func (m *MemoryStorage[T]) SetPromise(n paxos.Ballot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promise = n
	return nil
}

func (m *MemoryStorage[T]) Promise() (paxos.Ballot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.promise, nil
}

func (m *MemoryStorage[T]) SetAcceptedRound(n paxos.Ballot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acceptedRound = n
	return nil
}

func (m *MemoryStorage[T]) AcceptedRound() (paxos.Ballot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.acceptedRound, nil
}

func (m *MemoryStorage[T]) SetDecidedIdx(idx uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decided = idx
	return nil
}

func (m *MemoryStorage[T]) DecidedIdx() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.decided, nil
}

func (m *MemoryStorage[T]) SetStopSign(ss *paxos.StopSign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ss == nil {
		m.stopSign = nil
		return nil
	}
	cp := *ss
	m.stopSign = &cp
	return nil
}

func (m *MemoryStorage[T]) StopSign() (*paxos.StopSign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopSign == nil {
		return nil, nil
	}
	cp := *m.stopSign
	return &cp, nil
}

func (m *MemoryStorage[T]) SetSnapshot(snap *paxos.SnapshotType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap == nil {
		m.snapshot = nil
		return nil
	}
	cp := paxos.SnapshotType{Complete: snap.Complete, Data: append([]byte(nil), snap.Data...)}
	m.snapshot = &cp
	return nil
}

func (m *MemoryStorage[T]) Snapshot() (*paxos.SnapshotType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return nil, nil
	}
	cp := *m.snapshot
	return &cp, nil
}

func (m *MemoryStorage[T]) Trim(idx uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx <= m.compacted {
		return nil
	}
	if idx >= m.logLen() {
		m.log.Clear(false)
	} else {
		for {
			first, ok := m.log.Min()
			if !ok || first.idx >= idx {
				break
			}
			m.log.DeleteMin()
		}
	}
	m.compacted = idx
	return nil
}

func (m *MemoryStorage[T]) CompactedIdx() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.compacted, nil
}

func (m *MemoryStorage[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Clear(false)
	return nil
}
