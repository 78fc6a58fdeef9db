package storage

import (
	"errors"
	"reflect"
	"testing"

	"github.com/virajbhartiya/seqpaxos/pkg/paxos"
)

type factory func(t *testing.T) paxos.Storage[string]

func backends() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T) paxos.Storage[string] {
			return NewMemoryStorage[string]()
		},
		"bolt": func(t *testing.T) paxos.Storage[string] {
			s, err := OpenBoltStorage[string](t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s paxos.Storage[string])) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			defer s.Close()
			fn(t, s)
		})
	}
}

func mustEntries(t *testing.T, s paxos.Storage[string], from, to uint64) []string {
	t.Helper()
	ents, err := s.Entries(from, to)
	if err != nil {
		t.Fatalf("Entries(%d, %d): %v", from, to, err)
	}
	return ents
}

func mustLen(t *testing.T, s paxos.Storage[string]) uint64 {
	t.Helper()
	n, err := s.LogLen()
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestAppendAndRead(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s paxos.Storage[string]) {
		n, err := s.AppendEntries([]string{"a", "b", "c"})
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Fatalf("log len = %d, want 3", n)
		}
		if got := mustEntries(t, s, 1, 3); !reflect.DeepEqual(got, []string{"b", "c"}) {
			t.Fatalf("entries = %v", got)
		}
		if _, err := s.Entries(2, 5); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("err = %v, want ErrOutOfRange", err)
		}
	})
}

func TestAppendOnPrefix(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s paxos.Storage[string]) {
		if _, err := s.AppendEntries([]string{"a", "b", "c", "d"}); err != nil {
			t.Fatal(err)
		}
		n, err := s.AppendOnPrefix(2, []string{"x"})
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Fatalf("log len = %d, want 3", n)
		}
		if got := mustEntries(t, s, 0, 3); !reflect.DeepEqual(got, []string{"a", "b", "x"}) {
			t.Fatalf("entries = %v", got)
		}
	})
}

func TestTrim(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s paxos.Storage[string]) {
		if _, err := s.AppendEntries([]string{"a", "b", "c", "d"}); err != nil {
			t.Fatal(err)
		}
		if err := s.Trim(2); err != nil {
			t.Fatal(err)
		}
		if c, _ := s.CompactedIdx(); c != 2 {
			t.Fatalf("compacted = %d, want 2", c)
		}
		if mustLen(t, s) != 4 {
			t.Fatalf("trim changed log len")
		}
		if _, err := s.Entries(1, 3); !errors.Is(err, ErrCompacted) {
			t.Fatalf("err = %v, want ErrCompacted", err)
		}
		if got := mustEntries(t, s, 2, 4); !reflect.DeepEqual(got, []string{"c", "d"}) {
			t.Fatalf("entries = %v", got)
		}

		// trimming past the end leaves an empty log continuing at idx
		if err := s.Trim(6); err != nil {
			t.Fatal(err)
		}
		if mustLen(t, s) != 6 {
			t.Fatalf("log len = %d, want 6", mustLen(t, s))
		}
		n, err := s.AppendEntries([]string{"g"})
		if err != nil {
			t.Fatal(err)
		}
		if n != 7 {
			t.Fatalf("log len = %d, want 7", n)
		}
		if got := mustEntries(t, s, 6, 7); !reflect.DeepEqual(got, []string{"g"}) {
			t.Fatalf("entries = %v", got)
		}
	})
}

func TestMetadata(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s paxos.Storage[string]) {
		if p, _ := s.Promise(); !p.IsZero() {
			t.Fatalf("fresh promise = %v", p)
		}
		b := paxos.Ballot{N: 3, Priority: 1, PID: 2}
		if err := s.SetPromise(b); err != nil {
			t.Fatal(err)
		}
		if err := s.SetAcceptedRound(b); err != nil {
			t.Fatal(err)
		}
		if err := s.SetDecidedIdx(7); err != nil {
			t.Fatal(err)
		}
		if p, _ := s.Promise(); p != b {
			t.Fatalf("promise = %v, want %v", p, b)
		}
		if a, _ := s.AcceptedRound(); a != b {
			t.Fatalf("accepted round = %v, want %v", a, b)
		}
		if d, _ := s.DecidedIdx(); d != 7 {
			t.Fatalf("decided = %d, want 7", d)
		}
	})
}

func TestStopSignAndSnapshot(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s paxos.Storage[string]) {
		if ss, err := s.StopSign(); err != nil || ss != nil {
			t.Fatalf("fresh stopsign = %v, %v", ss, err)
		}
		ss := paxos.StopSign{
			NextConfig: paxos.ClusterConfig{ConfigID: 2, Nodes: []paxos.NodeID{1, 2, 3}},
			Metadata:   []byte{9},
		}
		if err := s.SetStopSign(&ss); err != nil {
			t.Fatal(err)
		}
		got, err := s.StopSign()
		if err != nil || got == nil || !got.Equal(ss) {
			t.Fatalf("stopsign = %v, %v", got, err)
		}
		if err := s.SetStopSign(nil); err != nil {
			t.Fatal(err)
		}
		if got, _ := s.StopSign(); got != nil {
			t.Fatalf("stopsign not removed: %v", got)
		}

		snap := paxos.SnapshotType{Complete: true, Data: []byte("state")}
		if err := s.SetSnapshot(&snap); err != nil {
			t.Fatal(err)
		}
		gotSnap, err := s.Snapshot()
		if err != nil || gotSnap == nil || !gotSnap.Equal(snap) {
			t.Fatalf("snapshot = %v, %v", gotSnap, err)
		}
		if err := s.SetSnapshot(nil); err != nil {
			t.Fatal(err)
		}
		if gotSnap, _ := s.Snapshot(); gotSnap != nil {
			t.Fatalf("snapshot not removed: %v", gotSnap)
		}
	})
}

func TestBoltReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenBoltStorage[string](dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendEntries([]string{"a", "b", "c"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Trim(1); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDecidedIdx(2); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenBoltStorage[string](dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if n := mustLen(t, s); n != 3 {
		t.Fatalf("log len = %d, want 3", n)
	}
	if c, _ := s.CompactedIdx(); c != 1 {
		t.Fatalf("compacted = %d, want 1", c)
	}
	if d, _ := s.DecidedIdx(); d != 2 {
		t.Fatalf("decided = %d, want 2", d)
	}
	if got := mustEntries(t, s, 1, 3); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("entries = %v", got)
	}
}
