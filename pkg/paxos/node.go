package paxos

import (
	"time"

	"github.com/google/uuid"
	sync "github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/virajbhartiya/seqpaxos/pkg/transport"
)

const DefaultTickInterval = 10 * time.Millisecond

// ApplyMsg delivers one decided slot to the state machine. Exactly one of
// CommandValid, SnapshotValid and StopSign is set.
type ApplyMsg[T any] struct {
	CommandValid bool
	Command      T
	CommandIndex uint64

	SnapshotValid bool
	Snapshot      []byte
	SnapshotIndex uint64

	StopSign *StopSign
}

// Node runs a Server on its own goroutine, wired to a transport and an apply
// channel. All methods are safe for concurrent use.
type Node[T any] struct {
	mu     sync.Mutex
	server *Server[T]
	tr     transport.Transport
	lg     *zap.Logger

	applyCh chan<- ApplyMsg[T]
	applied uint64

	sessions map[NodeID]uuid.UUID

	tick    time.Duration
	stopMu  sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewNode[T any](cfg Config, storage Storage[T], tr transport.Transport, applyCh chan<- ApplyMsg[T], tick time.Duration) (*Node[T], error) {
	s, err := NewServer(cfg, storage)
	if err != nil {
		return nil, err
	}
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Node[T]{
		server:   s,
		tr:       tr,
		lg:       cfg.logger(),
		applyCh:  applyCh,
		sessions: make(map[NodeID]uuid.UUID),
		tick:     tick,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

func (n *Node[T]) Start() {
	n.stopMu.Lock()
	defer n.stopMu.Unlock()
	if n.started || n.isStopped() {
		return
	}
	n.started = true
	go n.run()
}

func (n *Node[T]) run() {
	defer close(n.doneCh)
	ticker := time.NewTicker(n.tick)
	defer ticker.Stop()

	for {
		select {
		case env := <-n.tr.Incoming():
			n.mu.Lock()
			n.observeSession(env)
			err := n.server.Handle(Message{From: env.From, To: env.To, Msg: env.Payload})
			n.afterStep("handle", err)
			n.mu.Unlock()
		case <-ticker.C:
			n.mu.Lock()
			n.afterStep("tick", n.server.Tick())
			n.mu.Unlock()
		case <-n.stopCh:
			return
		}
	}
}

// Stop halts the event loop. It does not close the transport or storage.
func (n *Node[T]) Stop() {
	n.stopMu.Lock()
	if !n.isStopped() {
		close(n.stopCh)
	}
	started := n.started
	n.stopMu.Unlock()
	if started {
		<-n.doneCh
	}
}

func (n *Node[T]) isStopped() bool {
	select {
	case <-n.stopCh:
		return true
	default:
		return false
	}
}

// observeSession reports a re-established link to the server. The first
// session seen from a peer is not a reconnect.
func (n *Node[T]) observeSession(env transport.Envelope) {
	prev, seen := n.sessions[env.From]
	n.sessions[env.From] = env.Session
	if seen && prev != env.Session {
		n.lg.Debug("peer reconnected", zap.Uint64("pid", n.server.PID()), zap.Uint64("peer", env.From))
		n.server.Reconnected(env.From)
	}
}

// afterStep ships the server's outgoing messages and applies newly decided
// entries. Must be called with mu held.
func (n *Node[T]) afterStep(op string, err error) {
	if err != nil {
		n.lg.Error("step failed", zap.Uint64("pid", n.server.PID()), zap.String("op", op), zap.Error(err))
	}
	for _, m := range n.server.TakeOutgoing() {
		if err := n.tr.Send(m.To, m.Msg); err != nil {
			n.lg.Debug("send failed", zap.Uint64("pid", m.From), zap.Uint64("to", m.To), zap.Error(err))
		}
	}
	if err := n.applyDecided(); err != nil {
		n.lg.Error("apply failed", zap.Uint64("pid", n.server.PID()), zap.Error(err))
	}
}

func (n *Node[T]) applyDecided() error {
	if n.applyCh == nil {
		return nil
	}
	dec, err := n.server.DecidedIdx()
	if err != nil {
		return err
	}
	if dec <= n.applied {
		return nil
	}
	ents, err := n.server.ReadEntries(n.applied, dec)
	if err != nil {
		return err
	}
	idx := n.applied
	for _, e := range ents {
		var msg ApplyMsg[T]
		switch e.Kind {
		case Snapshotted:
			idx = e.Snapshotted.TrimmedIdx
			msg = ApplyMsg[T]{SnapshotValid: true, Snapshot: e.Snapshotted.Snapshot.Data, SnapshotIndex: idx}
		case Trimmed:
			n.lg.Warn("decided entries trimmed before being applied",
				zap.Uint64("pid", n.server.PID()), zap.Uint64("from", idx), zap.Uint64("to", e.TrimmedIdx))
			idx = e.TrimmedIdx
			continue
		case StopSignEntry:
			msg = ApplyMsg[T]{StopSign: e.StopSign}
			idx++
		default:
			msg = ApplyMsg[T]{CommandValid: true, Command: e.Entry, CommandIndex: idx}
			idx++
		}
		select {
		case n.applyCh <- msg:
		case <-n.stopCh:
			n.applied = idx
			return nil
		}
	}
	n.applied = idx
	return nil
}

func (n *Node[T]) do(op string, fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isStopped() {
		return ErrNodeStopped
	}
	err := fn()
	n.afterStep(op, nil)
	return err
}

func (n *Node[T]) Propose(entry T) error {
	return n.do("propose", func() error { return n.server.Propose(entry) })
}

func (n *Node[T]) ProposeStopSign(ss StopSign) error {
	return n.do("propose_stopsign", func() error { return n.server.ProposeStopSign(ss) })
}

// HandleLeader passes the outcome of a ballot election to the server.
func (n *Node[T]) HandleLeader(b Ballot) error {
	return n.do("handle_leader", func() error { return n.server.HandleLeader(b) })
}

// Campaign starts a leadership attempt with a ballot above every ballot this
// replica has seen.
func (n *Node[T]) Campaign() (Ballot, error) {
	var b Ballot
	err := n.do("campaign", func() error {
		prom, err := n.server.storage.Promise()
		if err != nil {
			return err
		}
		round := max(prom.N, n.server.leader.N) + 1
		b = NewBallot(round, n.server.PID())
		return n.server.HandleLeader(b)
	})
	return b, err
}

func (n *Node[T]) Reconnected(pid NodeID) {
	n.do("reconnected", func() error {
		n.server.Reconnected(pid)
		return nil
	})
}

func (n *Node[T]) Snapshot(idx uint64, snap SnapshotType) error {
	return n.do("snapshot", func() error { return n.server.Snapshot(idx, snap) })
}

func (n *Node[T]) Trim(idx uint64) error {
	return n.do("trim", func() error { return n.server.Trim(idx) })
}

func (n *Node[T]) Read(idx uint64) (LogEntry[T], bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.server.Read(idx)
}

func (n *Node[T]) ReadEntries(from, to uint64) ([]LogEntry[T], error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.server.ReadEntries(from, to)
}

func (n *Node[T]) ReadDecidedSuffix(from uint64) ([]LogEntry[T], error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.server.ReadDecidedSuffix(from)
}

func (n *Node[T]) Status() (Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.server.Status()
}

func (n *Node[T]) IsLeader() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.server.IsLeader()
}
