package paxos

import "testing"

func TestMajorityThreshold(t *testing.T) {
	for n := 1; n <= 15; n++ {
		q := NewQuorum(nil, n)
		want := n/2 + 1
		if r, w := q.Sizes(); r != want || w != want {
			t.Fatalf("N=%d: sizes = (%d, %d), want %d", n, r, w, want)
		}
		if q.IsPrepareQuorum(want-1) || !q.IsPrepareQuorum(want) {
			t.Fatalf("N=%d: prepare threshold not at %d", n, want)
		}
		if q.IsAcceptQuorum(want-1) || !q.IsAcceptQuorum(want) {
			t.Fatalf("N=%d: accept threshold not at %d", n, want)
		}
	}
}

func TestQuorumMonotonic(t *testing.T) {
	quorums := []Quorum{
		MajorityOf(1),
		MajorityOf(3),
		FlexibleQuorumOf(FlexibleQuorum{ReadQuorumSize: 4, WriteQuorumSize: 2}),
		FlexibleQuorumOf(FlexibleQuorum{ReadQuorumSize: 2, WriteQuorumSize: 4}),
	}
	for _, q := range quorums {
		prep, acc := false, false
		for c := 0; c <= 10; c++ {
			if prep && !q.IsPrepareQuorum(c) {
				t.Fatalf("%s: prepare quorum lost at %d", q, c)
			}
			if acc && !q.IsAcceptQuorum(c) {
				t.Fatalf("%s: accept quorum lost at %d", q, c)
			}
			prep, acc = q.IsPrepareQuorum(c), q.IsAcceptQuorum(c)
		}
	}
}

func TestFlexibleQuorum(t *testing.T) {
	q := NewQuorum(&FlexibleQuorum{ReadQuorumSize: 4, WriteQuorumSize: 2}, 5)
	if q.Kind != Flexible {
		t.Fatalf("kind = %v, want Flexible", q.Kind)
	}
	if q.IsPrepareQuorum(3) || !q.IsPrepareQuorum(4) {
		t.Error("prepare threshold should be 4")
	}
	if q.IsAcceptQuorum(1) || !q.IsAcceptQuorum(2) {
		t.Error("accept threshold should be 2")
	}
}

func TestFlexibleQuorumValidate(t *testing.T) {
	tests := []struct {
		fq    FlexibleQuorum
		nodes int
		ok    bool
	}{
		{FlexibleQuorum{ReadQuorumSize: 4, WriteQuorumSize: 2}, 5, true},
		{FlexibleQuorum{ReadQuorumSize: 3, WriteQuorumSize: 3}, 5, true},
		{FlexibleQuorum{ReadQuorumSize: 3, WriteQuorumSize: 2}, 5, false},
		{FlexibleQuorum{ReadQuorumSize: 0, WriteQuorumSize: 5}, 5, false},
		{FlexibleQuorum{ReadQuorumSize: 6, WriteQuorumSize: 1}, 5, false},
	}
	for i, tt := range tests {
		if err := tt.fq.Validate(tt.nodes); (err == nil) != tt.ok {
			t.Errorf("#%d: Validate(%+v, %d) = %v, want ok=%v", i, tt.fq, tt.nodes, err, tt.ok)
		}
	}
}
