package paxos

import (
	"fmt"
	"slices"

	"github.com/virajbhartiya/seqpaxos/pkg/sparse"
)

// AcceptMeta is the ballot and log index of the latest accept sent to a peer.
type AcceptMeta struct {
	N   Ballot
	Idx uint64
}

// LeaderState is the bookkeeping of one leadership attempt at ballot
// NLeader. It is created when the attempt starts and dropped when the node
// loses leadership or starts a new ballot. It is not safe for concurrent use.
type LeaderState[T any] struct {
	NLeader Ballot
	Quorum  Quorum

	// sorted ids of every peer that has a slot in the tables below
	members []NodeID

	promisesMeta *sparse.Vec[NodeID, PromiseState]
	// accept-phase sequence numbers per follower; AcceptSync opens a session
	followerSeqNums  *sparse.Vec[NodeID, SequenceNumber]
	acceptedIndexes  *sparse.Vec[NodeID, uint64]
	latestAcceptMeta *sparse.Vec[NodeID, *AcceptMeta]

	maxPromiseMeta PromiseMetaData
	maxPromiseSync *LogSync[T]
}

// NewLeaderState starts every peer as NotPromised with a zero sequence
// number, a zero accepted index and no in-flight accept. Peer ids are bounded
// by the largest id among peers and the leader; passing a larger pid to any
// method panics, so callers drop messages from nodes outside the
// configuration.
func NewLeaderState[T any](nLeader Ballot, peers []NodeID, quorum Quorum) *LeaderState[T] {
	bound := nLeader.PID
	for _, p := range peers {
		bound = max(bound, p)
	}
	size := bound + 1

	members := slices.Clone(peers)
	slices.Sort(members)
	members = slices.Compact(members)

	return &LeaderState[T]{
		NLeader:          nLeader,
		Quorum:           quorum,
		members:          members,
		promisesMeta:     sparse.New(PromiseState{Status: NotPromised}, size),
		followerSeqNums:  sparse.New(SequenceNumber{}, size),
		acceptedIndexes:  sparse.New(uint64(0), size),
		latestAcceptMeta: sparse.New[NodeID, *AcceptMeta](nil, size),
	}
}

func (ls *LeaderState[T]) track(pid NodeID) {
	i, found := slices.BinarySearch(ls.members, pid)
	if !found {
		ls.members = slices.Insert(ls.members, i, pid)
	}
}

// IncrementSeqNumSession starts a new accept stream to pid.
func (ls *LeaderState[T]) IncrementSeqNumSession(pid NodeID) {
	if _, found := slices.BinarySearch(ls.members, pid); !found {
		return
	}
	ls.followerSeqNums.Update(pid, func(s SequenceNumber) SequenceNumber {
		return SequenceNumber{Session: s.Session + 1}
	})
}

// NextSeqNum advances and returns the sequence number of the next accept
// message to pid.
func (ls *LeaderState[T]) NextSeqNum(pid NodeID) SequenceNumber {
	ls.track(pid)
	return ls.followerSeqNums.Update(pid, func(s SequenceNumber) SequenceNumber {
		s.Counter++
		return s
	})
}

func (ls *LeaderState[T]) SeqNum(pid NodeID) SequenceNumber {
	s, _ := ls.followerSeqNums.Get(pid)
	return s
}

// SetPromise records from's promise and reports whether a prepare quorum is
// reached. Every Promised peer counts toward the quorum regardless of how up
// to date it is; only the greatest promise is kept as the sync source, and
// only when checkMaxProm is set.
func (ls *LeaderState[T]) SetPromise(prom Promise[T], from NodeID, checkMaxProm bool) bool {
	meta := PromiseMetaData{
		NAccepted:   prom.NAccepted,
		AcceptedIdx: prom.AcceptedIdx,
		DecidedIdx:  prom.DecidedIdx,
		PID:         from,
	}
	if checkMaxProm && meta.Greater(ls.maxPromiseMeta) {
		ls.maxPromiseMeta = meta
		ls.maxPromiseSync = prom.LogSync
	}
	ls.track(from)
	ls.promisesMeta.Set(from, PromiseState{Status: Promised, Meta: meta})

	return ls.Quorum.IsPrepareQuorum(ls.numPromised())
}

func (ls *LeaderState[T]) numPromised() int {
	n := 0
	for _, pid := range ls.members {
		if ls.promisesMeta.At(pid).Status == Promised {
			n++
		}
	}
	return n
}

func (ls *LeaderState[T]) ResetPromise(pid NodeID) {
	ls.track(pid)
	ls.promisesMeta.Set(pid, PromiseState{Status: NotPromised})
}

// LostPromise marks pid as having promised a ballot greater than ours.
func (ls *LeaderState[T]) LostPromise(pid NodeID) {
	ls.track(pid)
	ls.promisesMeta.Set(pid, PromiseState{Status: PromisedHigher})
}

// TakeMaxPromiseSync hands over the log sync of the greatest promise and
// leaves nil behind. Call it once, when entering the accept phase.
func (ls *LeaderState[T]) TakeMaxPromiseSync() *LogSync[T] {
	s := ls.maxPromiseSync
	ls.maxPromiseSync = nil
	return s
}

func (ls *LeaderState[T]) MaxPromiseMeta() PromiseMetaData { return ls.maxPromiseMeta }

// MaxDecidedIdx is the greatest decided index among Promised peers, 0 if none.
func (ls *LeaderState[T]) MaxDecidedIdx() uint64 {
	var m uint64
	for _, pid := range ls.members {
		if st := ls.promisesMeta.At(pid); st.Status == Promised {
			m = max(m, st.Meta.DecidedIdx)
		}
	}
	return m
}

// PromiseStateOf returns pid's promise record. Callers check it before
// calling PromiseMeta.
func (ls *LeaderState[T]) PromiseStateOf(pid NodeID) PromiseState {
	st, _ := ls.promisesMeta.Get(pid)
	return st
}

// PromiseMeta returns the metadata of a Promised peer. It panics for any
// other peer: asking is a protocol bug.
func (ls *LeaderState[T]) PromiseMeta(pid NodeID) PromiseMetaData {
	st, ok := ls.promisesMeta.Get(pid)
	if !ok || st.Status != Promised {
		panic(fmt.Sprintf("paxos: no promise metadata for follower %d (state %s)", pid, st.Status))
	}
	return st.Meta
}

func (ls *LeaderState[T]) ResetLatestAcceptMeta() {
	ls.latestAcceptMeta.Reset()
}

// PromisedFollowers returns the Promised peers other than the leader, in
// ascending id order.
func (ls *LeaderState[T]) PromisedFollowers() []NodeID {
	var out []NodeID
	for _, pid := range ls.members {
		if pid != ls.NLeader.PID && ls.promisesMeta.At(pid).Status == Promised {
			out = append(out, pid)
		}
	}
	return out
}

// PreparablePeers returns, in input order, the peers that are still
// NotPromised. A peer outside the tables' bound panics.
func (ls *LeaderState[T]) PreparablePeers(peers []NodeID) []NodeID {
	out := make([]NodeID, 0, len(peers))
	for _, pid := range peers {
		if ls.promisesMeta.At(pid).Status == NotPromised {
			out = append(out, pid)
		}
	}
	return out
}

// SetLatestAcceptMeta records that the latest accept sent to pid carries
// (NLeader, *idx); a nil idx clears the record.
func (ls *LeaderState[T]) SetLatestAcceptMeta(pid NodeID, idx *uint64) {
	if idx == nil {
		ls.latestAcceptMeta.Set(pid, nil)
		return
	}
	ls.latestAcceptMeta.Set(pid, &AcceptMeta{N: ls.NLeader, Idx: *idx})
}

func (ls *LeaderState[T]) LatestAcceptMeta(pid NodeID) (AcceptMeta, bool) {
	m, _ := ls.latestAcceptMeta.Get(pid)
	if m == nil {
		return AcceptMeta{}, false
	}
	return *m, true
}

func (ls *LeaderState[T]) SetAcceptedIdx(pid NodeID, idx uint64) {
	ls.track(pid)
	ls.acceptedIndexes.Set(pid, idx)
}

func (ls *LeaderState[T]) AcceptedIdx(pid NodeID) uint64 {
	idx, _ := ls.acceptedIndexes.Get(pid)
	return idx
}

// DecidedIdx returns the decided index pid reported in its promise.
func (ls *LeaderState[T]) DecidedIdx(pid NodeID) (uint64, bool) {
	st, ok := ls.promisesMeta.Get(pid)
	if !ok || st.Status != Promised {
		return 0, false
	}
	return st.Meta.DecidedIdx, true
}

// IsChosen reports whether an accept quorum of peers has acknowledged idx.
func (ls *LeaderState[T]) IsChosen(idx uint64) bool {
	n := 0
	for _, pid := range ls.members {
		if ls.acceptedIndexes.At(pid) >= idx {
			n++
		}
	}
	return ls.Quorum.IsAcceptQuorum(n)
}
