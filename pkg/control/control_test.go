package control

import (
	"testing"
	"time"

	"github.com/virajbhartiya/seqpaxos/pkg/fsm"
	"github.com/virajbhartiya/seqpaxos/pkg/paxos"
	"github.com/virajbhartiya/seqpaxos/pkg/storage"
	"github.com/virajbhartiya/seqpaxos/pkg/transport"
)

func newTestService(t *testing.T) (*Service, *Applier) {
	t.Helper()
	network := transport.NewInProcNetwork()
	applyCh := make(chan paxos.ApplyMsg[[]byte], 16)
	cfg := paxos.DefaultConfig(1, []paxos.NodeID{1})
	cfg.ResendMessageTimeout = 5
	node, err := paxos.NewNode(cfg, paxos.Storage[[]byte](storage.NewMemoryStorage[[]byte]()), network.Join(1), applyCh, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	app := NewApplier(fsm.NewKVStore(), nil)
	stop := make(chan struct{})
	go app.Run(applyCh, stop)
	node.Start()
	t.Cleanup(func() {
		node.Stop()
		close(stop)
	})
	return NewService(node, app), app
}

func waitApplied(t *testing.T, app *Applier, idx uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for app.Applied() < idx {
		if time.Now().After(deadline) {
			t.Fatalf("applied = %d, want %d", app.Applied(), idx)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestServiceProposeAndGet(t *testing.T) {
	svc, app := newTestService(t)

	var ballot CampaignReply
	if err := svc.Campaign(struct{}{}, &ballot); err != nil {
		t.Fatal(err)
	}
	if ballot.Ballot.PID != 1 {
		t.Fatalf("campaign ballot = %s", ballot.Ballot)
	}

	for _, cmd := range []fsm.Command{
		{Op: fsm.OpSet, Key: "a", Value: "1"},
		{Op: fsm.OpSet, Key: "b", Value: "2"},
		{Op: fsm.OpDelete, Key: "a"},
	} {
		var reply ProposeReply
		if err := svc.Propose(ProposeArgs{Command: cmd}, &reply); err != nil {
			t.Fatal(err)
		}
		if !reply.OK {
			t.Fatalf("propose %+v rejected: %s", cmd, reply.Err)
		}
	}
	waitApplied(t, app, 3)

	var got GetReply
	svc.Get(GetArgs{Key: "b"}, &got)
	if !got.Found || got.Value != "2" {
		t.Fatalf("get b = %+v", got)
	}
	svc.Get(GetArgs{Key: "a"}, &got)
	if got.Found {
		t.Fatalf("deleted key a still found: %+v", got)
	}

	var st StateReply
	if err := svc.State(struct{}{}, &st); err != nil {
		t.Fatal(err)
	}
	if st.PID != 1 || st.Role != paxos.Leader.String() || st.DecidedIdx != 3 || st.Applied != 3 {
		t.Fatalf("state = %+v", st)
	}
}

func TestServiceSnapshot(t *testing.T) {
	svc, app := newTestService(t)
	svc.Campaign(struct{}{}, &CampaignReply{})

	var reply ProposeReply
	svc.Propose(ProposeArgs{Command: fsm.Command{Op: fsm.OpSet, Key: "k", Value: "v"}}, &reply)
	svc.Propose(ProposeArgs{Command: fsm.Command{Op: fsm.OpSet, Key: "k", Value: "w"}}, &reply)
	waitApplied(t, app, 2)

	var snap SnapshotReply
	if err := svc.Snapshot(struct{}{}, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Idx != 2 {
		t.Fatalf("snapshot idx = %d, want 2", snap.Idx)
	}
	var st StateReply
	svc.State(struct{}{}, &st)
	if st.CompactedIdx != 2 {
		t.Fatalf("compacted idx = %d, want 2", st.CompactedIdx)
	}
}
