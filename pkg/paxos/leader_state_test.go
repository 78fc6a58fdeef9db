package paxos

import (
	"reflect"
	"slices"
	"testing"
)

func promise(na Ballot, acc, dec uint64) Promise[string] {
	return Promise[string]{NAccepted: na, AcceptedIdx: acc, DecidedIdx: dec}
}

func TestPromiseMetaDataOrder(t *testing.T) {
	metas := []PromiseMetaData{
		{NAccepted: NewBallot(1, 5), AcceptedIdx: 10, PID: 2},
		{NAccepted: NewBallot(1, 3), AcceptedIdx: 7, PID: 3},
		{NAccepted: NewBallot(2, 1), AcceptedIdx: 12, PID: 4},
		{NAccepted: NewBallot(2, 1), AcceptedIdx: 3, PID: 5},
		{NAccepted: NewBallot(2, 1), AcceptedIdx: 3, PID: 6},
		{},
	}
	for _, a := range metas {
		if a.Greater(a) {
			t.Fatalf("%s > itself", a)
		}
		for _, b := range metas {
			if a.Greater(b) && b.Greater(a) {
				t.Fatalf("%s and %s both greater", a, b)
			}
			for _, c := range metas {
				if a.Greater(b) && b.Greater(c) && !a.Greater(c) {
					t.Fatalf("transitivity: %s > %s > %s", a, b, c)
				}
			}
		}
	}

	a := PromiseMetaData{NAccepted: NewBallot(2, 1), AcceptedIdx: 3, DecidedIdx: 1, PID: 5}
	b := a
	b.DecidedIdx = 3
	if !a.Equal(b) {
		t.Fatal("decided idx must not affect equality")
	}
	b.PID = 6
	if a.Equal(b) {
		t.Fatal("pid must affect equality")
	}
	if !metas[2].Greater(metas[0]) {
		t.Fatal("accepted ballot must dominate accepted idx")
	}
}

func TestSetPromiseScenario(t *testing.T) {
	ls := NewLeaderState[string](NewBallot(2, 1), []NodeID{1, 2, 3, 4, 5}, MajorityOf(3))

	if ls.SetPromise(promise(NewBallot(1, 5), 10, 0), 2, true) {
		t.Fatal("quorum after 1 promise")
	}
	if ls.SetPromise(promise(NewBallot(1, 3), 7, 0), 3, true) {
		t.Fatal("quorum after 2 promises")
	}
	if !ls.SetPromise(promise(NewBallot(2, 1), 12, 0), 4, true) {
		t.Fatal("no quorum after 3 promises")
	}
	want := PromiseMetaData{NAccepted: NewBallot(2, 1), AcceptedIdx: 12, PID: 4}
	if got := ls.MaxPromiseMeta(); !got.Equal(want) {
		t.Fatalf("max promise = %s, want %s", got, want)
	}
}

func TestSetPromiseWatermark(t *testing.T) {
	ls := NewLeaderState[string](NewBallot(3, 1), []NodeID{1, 2, 3, 4}, MajorityOf(3))
	strong := promise(NewBallot(2, 2), 9, 4)
	strong.LogSync = &LogSync[string]{SyncIdx: 4, Suffix: []string{"e", "f"}}
	ls.SetPromise(strong, 2, true)

	weak := promise(NewBallot(1, 2), 20, 0)
	weak.LogSync = &LogSync[string]{SyncIdx: 0, Suffix: []string{"x"}}
	ls.SetPromise(weak, 3, true)

	if got := ls.MaxPromiseMeta(); got.PID != 2 {
		t.Fatalf("max promise from %d, want 2", got.PID)
	}
	if got := ls.TakeMaxPromiseSync(); !got.Equal(strong.LogSync) {
		t.Fatalf("max sync = %+v, want %+v", got, strong.LogSync)
	}
	if ls.TakeMaxPromiseSync() != nil {
		t.Fatal("max sync taken twice")
	}

	// without checkMaxProm the promise counts but is never a sync source
	stronger := promise(NewBallot(3, 1), 30, 0)
	if !ls.SetPromise(stronger, 4, false) {
		t.Fatal("promise from 4 should complete the quorum")
	}
	if got := ls.MaxPromiseMeta(); got.PID != 2 {
		t.Fatalf("max promise moved to %d without checkMaxProm", got.PID)
	}
	if got := ls.MaxDecidedIdx(); got != 4 {
		t.Fatalf("max decided = %d, want 4", got)
	}
}

func TestPromiseStates(t *testing.T) {
	ls := NewLeaderState[string](NewBallot(1, 1), []NodeID{1, 2, 3}, MajorityOf(2))
	ls.SetPromise(promise(Ballot{}, 0, 0), 1, true)
	ls.SetPromise(promise(Ballot{}, 5, 2), 2, true)
	ls.LostPromise(3)

	if st := ls.PromiseStateOf(3).Status; st != PromisedHigher {
		t.Fatalf("peer 3 = %s, want PromisedHigher", st)
	}
	if got := ls.PromisedFollowers(); !reflect.DeepEqual(got, []NodeID{2}) {
		t.Fatalf("promised followers = %v, want [2]", got)
	}
	if dec, ok := ls.DecidedIdx(2); !ok || dec != 2 {
		t.Fatalf("decided idx of 2 = %d, %v", dec, ok)
	}
	if _, ok := ls.DecidedIdx(3); ok {
		t.Fatal("decided idx of a PromisedHigher peer")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("PromiseMeta of a non-promised peer did not panic")
		}
	}()
	ls.PromiseMeta(3)
}

func TestPreparablePeers(t *testing.T) {
	nodes := []NodeID{6, 7, 8}
	ls := NewLeaderState[string](Ballot{ConfigID: 1, N: 1, Priority: 1, PID: 8}, nodes, MajorityOf(2))
	if got := ls.PreparablePeers(nodes); !reflect.DeepEqual(got, nodes) {
		t.Fatalf("preparable = %v, want %v", got, nodes)
	}

	nodes = []NodeID{7, 1, 100, 4, 6}
	ls = NewLeaderState[string](Ballot{ConfigID: 1, N: 1, Priority: 1, PID: 100}, nodes, MajorityOf(3))
	if got := ls.PreparablePeers(nodes); !reflect.DeepEqual(got, nodes) {
		t.Fatalf("preparable = %v, want %v", got, nodes)
	}

	ls.SetPromise(promise(Ballot{}, 0, 0), 1, true)
	ls.LostPromise(4)
	want := []NodeID{7, 100, 6}
	if got := ls.PreparablePeers(nodes); !reflect.DeepEqual(got, want) {
		t.Fatalf("preparable = %v, want %v", got, want)
	}

	perm := []NodeID{6, 100, 4, 1, 7}
	got := ls.PreparablePeers(perm)
	slices.Sort(got)
	slices.Sort(want)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("permuted preparable = %v, want %v", got, want)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("out-of-bound peer did not panic")
		}
	}()
	ls.PreparablePeers([]NodeID{101})
}

func TestIsChosen(t *testing.T) {
	ls := NewLeaderState[string](NewBallot(1, 1), []NodeID{1, 2, 3, 4, 5}, MajorityOf(3))
	ls.SetAcceptedIdx(1, 100)
	if ls.IsChosen(100) {
		t.Fatal("chosen with 1 acknowledgement")
	}
	ls.SetAcceptedIdx(2, 100)
	ls.SetAcceptedIdx(2, 100)
	if ls.IsChosen(100) {
		t.Fatal("repeated acknowledgement counted twice")
	}
	ls.SetAcceptedIdx(3, 120)
	if !ls.IsChosen(100) {
		t.Fatal("not chosen with 3 acknowledgements")
	}
	ls.SetAcceptedIdx(3, 120)
	ls.SetAcceptedIdx(4, 100)
	if !ls.IsChosen(100) {
		t.Fatal("chosen flipped back")
	}
	if ls.IsChosen(120) {
		t.Fatal("120 chosen with 1 acknowledgement")
	}
}

func TestSeqNumSessions(t *testing.T) {
	ls := NewLeaderState[string](NewBallot(1, 1), []NodeID{1, 2, 3}, MajorityOf(2))
	ls.IncrementSeqNumSession(2)
	if got := ls.NextSeqNum(2); got != (SequenceNumber{Session: 1, Counter: 1}) {
		t.Fatalf("next seq = %s, want 1.1", got)
	}
	if got := ls.NextSeqNum(2); got != (SequenceNumber{Session: 1, Counter: 2}) {
		t.Fatalf("next seq = %s, want 1.2", got)
	}
	ls.IncrementSeqNumSession(2)
	if got := ls.SeqNum(2); got != (SequenceNumber{Session: 2}) {
		t.Fatalf("seq after new session = %s, want 2.0", got)
	}
	if got := ls.NextSeqNum(3); got != (SequenceNumber{Session: 0, Counter: 1}) {
		t.Fatalf("seq of fresh peer = %s, want 0.1", got)
	}
}

func TestLatestAcceptMeta(t *testing.T) {
	ls := NewLeaderState[string](NewBallot(4, 1), []NodeID{1, 2}, MajorityOf(2))
	idx := uint64(7)
	ls.SetLatestAcceptMeta(2, &idx)
	if m, ok := ls.LatestAcceptMeta(2); !ok || m.Idx != 7 || m.N != ls.NLeader {
		t.Fatalf("latest accept = %+v, %v", m, ok)
	}
	ls.ResetLatestAcceptMeta()
	if _, ok := ls.LatestAcceptMeta(2); ok {
		t.Fatal("latest accept survived reset")
	}
}
