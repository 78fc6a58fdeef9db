package control

import (
	sync "github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/virajbhartiya/seqpaxos/pkg/fsm"
	"github.com/virajbhartiya/seqpaxos/pkg/paxos"
)

// Applier feeds decided entries into a KVStore and remembers how far it got,
// so snapshots can be cut at a known log index.
type Applier struct {
	mu   sync.Mutex
	kv   *fsm.KVStore
	next uint64
	lg   *zap.Logger
}

func NewApplier(kv *fsm.KVStore, lg *zap.Logger) *Applier {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Applier{kv: kv, lg: lg}
}

// Run applies messages until applyCh is closed or stop is signalled.
func (a *Applier) Run(applyCh <-chan paxos.ApplyMsg[[]byte], stop <-chan struct{}) {
	for {
		select {
		case msg, ok := <-applyCh:
			if !ok {
				return
			}
			a.apply(msg)
		case <-stop:
			return
		}
	}
}

func (a *Applier) apply(msg paxos.ApplyMsg[[]byte]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case msg.CommandValid:
		if a.kv.Apply(msg.Command) == nil {
			a.lg.Warn("skipping undecodable command", zap.Uint64("index", msg.CommandIndex))
		}
		a.next = msg.CommandIndex + 1
	case msg.SnapshotValid:
		if err := a.kv.Restore(msg.Snapshot); err != nil {
			a.lg.Error("failed to restore snapshot", zap.Uint64("index", msg.SnapshotIndex), zap.Error(err))
			return
		}
		a.next = msg.SnapshotIndex
	case msg.StopSign != nil:
		a.next++
		a.lg.Info("configuration stopped", zap.Uint32("next_config", msg.StopSign.NextConfig.ConfigID),
			zap.Uint64s("next_nodes", msg.StopSign.NextConfig.Nodes))
	}
}

// Applied is the index of the next entry to apply.
func (a *Applier) Applied() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Snapshot returns the state machine contents together with the number of
// log entries they cover.
func (a *Applier) Snapshot() ([]byte, uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, err := a.kv.Snapshot()
	return data, a.next, err
}
