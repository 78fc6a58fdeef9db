// Package simulator runs a whole cluster in one process for tests.
package simulator

import (
	"fmt"
	"time"

	sync "github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/virajbhartiya/seqpaxos/pkg/fsm"
	"github.com/virajbhartiya/seqpaxos/pkg/paxos"
	"github.com/virajbhartiya/seqpaxos/pkg/storage"
	"github.com/virajbhartiya/seqpaxos/pkg/transport"
)

// Options tweak every replica of a Cluster.
type Options struct {
	Tick           time.Duration
	FlexibleQuorum *paxos.FlexibleQuorum
	BatchSize      int
	// ResendTicks overrides paxos.DefaultResendMessageTimeout.
	ResendTicks uint64
	Logger      *zap.Logger
}

type Cluster struct {
	mu       sync.Mutex
	ids      []paxos.NodeID
	opts     Options
	network  *transport.InProcNetwork
	nodes    map[paxos.NodeID]*paxos.Node[[]byte]
	links    map[paxos.NodeID]*transport.InProcNode
	storages map[paxos.NodeID]*storage.MemoryStorage[[]byte]
	fsms     map[paxos.NodeID]*fsm.KVStore
	applyChs map[paxos.NodeID]chan paxos.ApplyMsg[[]byte]
	applied  map[paxos.NodeID]uint64
	stopped  map[paxos.NodeID]chan struct{}
}

func NewCluster(ids []paxos.NodeID, opts Options) (*Cluster, error) {
	if opts.Tick <= 0 {
		opts.Tick = time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Cluster{
		ids:      ids,
		opts:     opts,
		network:  transport.NewInProcNetwork(),
		nodes:    make(map[paxos.NodeID]*paxos.Node[[]byte]),
		links:    make(map[paxos.NodeID]*transport.InProcNode),
		storages: make(map[paxos.NodeID]*storage.MemoryStorage[[]byte]),
		fsms:     make(map[paxos.NodeID]*fsm.KVStore),
		applyChs: make(map[paxos.NodeID]chan paxos.ApplyMsg[[]byte]),
		applied:  make(map[paxos.NodeID]uint64),
		stopped:  make(map[paxos.NodeID]chan struct{}),
	}
	for _, id := range ids {
		c.storages[id] = storage.NewMemoryStorage[[]byte]()
		if err := c.startNode(id); err != nil {
			c.Stop()
			return nil, err
		}
	}
	return c, nil
}

func (c *Cluster) config(id paxos.NodeID) paxos.Config {
	cfg := paxos.DefaultConfig(id, c.ids)
	cfg.FlexibleQuorum = c.opts.FlexibleQuorum
	if c.opts.BatchSize > 0 {
		cfg.BatchSize = c.opts.BatchSize
	}
	if c.opts.ResendTicks > 0 {
		cfg.ResendMessageTimeout = c.opts.ResendTicks
	}
	cfg.Logger = c.opts.Logger.With(zap.Uint64("node", id))
	return cfg
}

// startNode builds a fresh node, state machine and link on top of the
// node's existing storage. Must be called with mu held or before the
// cluster is shared.
func (c *Cluster) startNode(id paxos.NodeID) error {
	link := c.network.Join(id)
	applyCh := make(chan paxos.ApplyMsg[[]byte], 1024)
	node, err := paxos.NewNode(c.config(id), paxos.Storage[[]byte](c.storages[id]), link, applyCh, c.opts.Tick)
	if err != nil {
		link.Close()
		return fmt.Errorf("node %d: %w", id, err)
	}
	kv := fsm.NewKVStore()
	stop := make(chan struct{})

	c.nodes[id] = node
	c.links[id] = link
	c.fsms[id] = kv
	c.applyChs[id] = applyCh
	c.applied[id] = 0
	c.stopped[id] = stop

	go c.applyLoop(id, applyCh, kv, stop)
	node.Start()
	return nil
}

func (c *Cluster) applyLoop(id paxos.NodeID, applyCh <-chan paxos.ApplyMsg[[]byte], kv *fsm.KVStore, stop <-chan struct{}) {
	for {
		select {
		case msg := <-applyCh:
			switch {
			case msg.CommandValid:
				kv.Apply(msg.Command)
				c.setApplied(id, msg.CommandIndex+1)
			case msg.SnapshotValid:
				kv.Restore(msg.Snapshot)
				c.setApplied(id, msg.SnapshotIndex)
			}
		case <-stop:
			return
		}
	}
}

func (c *Cluster) setApplied(id paxos.NodeID, idx uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied[id] = idx
}

func (c *Cluster) Stop() {
	c.mu.Lock()
	nodes := make([]paxos.NodeID, 0, len(c.nodes))
	for id := range c.nodes {
		nodes = append(nodes, id)
	}
	c.mu.Unlock()
	for _, id := range nodes {
		c.Crash(id)
	}
}

// Crash stops a node but keeps its storage for Restart.
func (c *Cluster) Crash(id paxos.NodeID) {
	c.mu.Lock()
	node, ok := c.nodes[id]
	link := c.links[id]
	stop := c.stopped[id]
	delete(c.nodes, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	node.Stop()
	link.Close()
	close(stop)
}

func (c *Cluster) Restart(id paxos.NodeID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[id]; ok {
		return nil
	}
	if _, ok := c.storages[id]; !ok {
		return fmt.Errorf("unknown node %d", id)
	}
	return c.startNode(id)
}

func (c *Cluster) Partition(id paxos.NodeID, isolated bool) {
	c.network.Partition(id, isolated)
}

func (c *Cluster) SetDropRate(rate float64) {
	c.network.SetDropRate(rate)
}

func (c *Cluster) SetDelay(min, max time.Duration) {
	c.network.SetDelay(min, max)
}

func (c *Cluster) Node(id paxos.NodeID) *paxos.Node[[]byte] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes[id]
}

func (c *Cluster) FSM(id paxos.NodeID) *fsm.KVStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsms[id]
}

func (c *Cluster) Applied(id paxos.NodeID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied[id]
}

// Campaign makes id run for leader.
func (c *Cluster) Campaign(id paxos.NodeID) (paxos.Ballot, error) {
	node := c.Node(id)
	if node == nil {
		return paxos.Ballot{}, paxos.ErrNodeStopped
	}
	return node.Campaign()
}

func (c *Cluster) Set(via paxos.NodeID, key, value string) error {
	cmd, err := fsm.EncodeCommand(fsm.Command{Op: fsm.OpSet, Key: key, Value: value})
	if err != nil {
		return err
	}
	node := c.Node(via)
	if node == nil {
		return paxos.ErrNodeStopped
	}
	return node.Propose(cmd)
}

// WaitForLeader returns the pid of a running node that leads an accept
// phase, or 0 on timeout.
func (c *Cluster) WaitForLeader(timeout time.Duration) paxos.NodeID {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, id := range c.ids {
			if node := c.Node(id); node != nil && node.IsLeader() {
				return id
			}
		}
		time.Sleep(time.Millisecond)
	}
	return 0
}

// WaitForApplied waits until every node in ids has applied idx entries.
func (c *Cluster) WaitForApplied(idx uint64, timeout time.Duration, ids ...paxos.NodeID) bool {
	if len(ids) == 0 {
		ids = c.ids
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		done := true
		for _, id := range ids {
			if c.Applied(id) < idx {
				done = false
				break
			}
		}
		if done {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// WaitForDecided waits until every node in ids reports a decided index of at
// least idx.
func (c *Cluster) WaitForDecided(idx uint64, timeout time.Duration, ids ...paxos.NodeID) bool {
	if len(ids) == 0 {
		ids = c.ids
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		done := true
		for _, id := range ids {
			node := c.Node(id)
			if node == nil {
				done = false
				break
			}
			st, err := node.Status()
			if err != nil || st.DecidedIdx < idx {
				done = false
				break
			}
		}
		if done {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
