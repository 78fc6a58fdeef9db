package transport

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	sync "github.com/sasha-s/go-deadlock"
)

const inboxSize = 4096

type link struct {
	from, to uint64
}

// InProcNetwork connects InProcNodes in the same process. It can drop, delay
// and partition traffic to exercise the protocol's recovery paths.
type InProcNetwork struct {
	mu       sync.RWMutex
	nodes    map[uint64]*InProcNode
	sessions map[link]uuid.UUID
	isolated map[uint64]bool
	dropRate float64
	delayMin time.Duration
	delayMax time.Duration
}

type InProcNode struct {
	id      uint64
	network *InProcNetwork
	inbox   chan Envelope

	mu     sync.Mutex
	closed chan struct{}
}

var _ Transport = (*InProcNode)(nil)

func NewInProcNetwork() *InProcNetwork {
	return &InProcNetwork{
		nodes:    make(map[uint64]*InProcNode),
		sessions: make(map[link]uuid.UUID),
		isolated: make(map[uint64]bool),
	}
}

// Join registers id on the network, replacing any previous node with the
// same id. Links to and from a rejoined node get fresh sessions.
func (n *InProcNetwork) Join(id uint64) *InProcNode {
	n.mu.Lock()
	defer n.mu.Unlock()

	node := &InProcNode{
		id:      id,
		network: n,
		inbox:   make(chan Envelope, inboxSize),
		closed:  make(chan struct{}),
	}
	n.nodes[id] = node
	n.renewSessions(id)
	return node
}

func (n *InProcNetwork) leave(id uint64, node *InProcNode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.nodes[id] == node {
		delete(n.nodes, id)
	}
}

func (n *InProcNetwork) renewSessions(id uint64) {
	for l := range n.sessions {
		if l.from == id || l.to == id {
			delete(n.sessions, l)
		}
	}
}

func (n *InProcNetwork) session(l link) uuid.UUID {
	if s, ok := n.sessions[l]; ok {
		return s
	}
	s := uuid.New()
	n.sessions[l] = s
	return s
}

func (n *InProcNetwork) SetDropRate(rate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropRate = rate
}

func (n *InProcNetwork) SetDelay(min, max time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delayMin = min
	n.delayMax = max
}

// Partition cuts id off from every other node. Healing the partition starts
// new sessions on all of id's links.
func (n *InProcNetwork) Partition(id uint64, isolated bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isolated[id] && !isolated {
		n.renewSessions(id)
	}
	n.isolated[id] = isolated
}

func (n *InProcNetwork) IsPartitioned(from, to uint64) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.isolated[from] || n.isolated[to]
}

func (n *InProcNetwork) send(from, to uint64, payload interface{}) error {
	n.mu.Lock()
	target, ok := n.nodes[to]
	if !ok {
		n.mu.Unlock()
		return ErrUnknownNode
	}
	if n.isolated[from] || n.isolated[to] {
		n.mu.Unlock()
		return ErrPartitioned
	}
	if n.dropRate > 0 && rand.Float64() < n.dropRate {
		n.mu.Unlock()
		return ErrDropped
	}
	env := Envelope{From: from, To: to, Session: n.session(link{from, to}), Payload: payload}
	delay := n.delayMin
	if n.delayMax > n.delayMin {
		delay += time.Duration(rand.Int63n(int64(n.delayMax - n.delayMin)))
	}
	n.mu.Unlock()

	if delay > 0 {
		time.AfterFunc(delay, func() { target.deliver(env) })
		return nil
	}
	if !target.deliver(env) {
		return ErrDropped
	}
	return nil
}

func (nd *InProcNode) deliver(env Envelope) bool {
	select {
	case <-nd.closed:
		return false
	default:
	}
	select {
	case nd.inbox <- env:
		return true
	default:
		return false
	}
}

func (nd *InProcNode) ID() uint64 { return nd.id }

func (nd *InProcNode) Send(to uint64, payload interface{}) error {
	select {
	case <-nd.closed:
		return ErrClosed
	default:
	}
	return nd.network.send(nd.id, to, payload)
}

func (nd *InProcNode) Incoming() <-chan Envelope {
	return nd.inbox
}

// Close detaches the node from the network. Its inbox is never closed so
// late deliveries cannot panic; readers should stop on their own signal.
func (nd *InProcNode) Close() error {
	nd.mu.Lock()
	defer nd.mu.Unlock()
	select {
	case <-nd.closed:
		return nil
	default:
	}
	close(nd.closed)
	nd.network.leave(nd.id, nd)
	return nil
}
