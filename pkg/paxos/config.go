package paxos

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// Defaults for the tuning knobs of Config. Timeouts are in ticks.
const (
	DefaultBufferSize           = 100000
	DefaultBatchSize            = 1
	DefaultResendMessageTimeout = 100
	DefaultFlushBatchTimeout    = 200
)

// Config carries everything a replica needs at construction time.
type Config struct {
	// PID is this replica's id; it must appear in Nodes.
	PID NodeID
	// Nodes is every member of the configuration, including PID.
	Nodes    []NodeID
	ConfigID ConfigurationID

	// FlexibleQuorum overrides the majority quorum when set.
	FlexibleQuorum *FlexibleQuorum

	// BufferSize bounds the proposals held while no accept phase is running.
	BufferSize int
	// BatchSize is the number of proposals the leader collects before
	// appending them as one batch.
	BatchSize int
	// ResendMessageTimeout is the number of ticks between resends of
	// Prepare / PrepareReq.
	ResendMessageTimeout uint64
	// FlushBatchTimeout is the number of ticks after which a partial batch is
	// flushed anyway.
	FlushBatchTimeout uint64

	Logger *zap.Logger
}

func DefaultConfig(pid NodeID, nodes []NodeID) Config {
	return Config{
		PID:                  pid,
		Nodes:                nodes,
		BufferSize:           DefaultBufferSize,
		BatchSize:            DefaultBatchSize,
		ResendMessageTimeout: DefaultResendMessageTimeout,
		FlushBatchTimeout:    DefaultFlushBatchTimeout,
	}
}

func (c Config) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidConfig)
	}
	if !slices.Contains(c.Nodes, c.PID) {
		return fmt.Errorf("%w: pid %d not in nodes %v", ErrInvalidConfig, c.PID, c.Nodes)
	}
	if slices.Contains(c.Nodes, 0) {
		return fmt.Errorf("%w: node id 0 is reserved", ErrInvalidConfig)
	}
	if c.BufferSize <= 0 || c.BatchSize <= 0 {
		return fmt.Errorf("%w: buffer size %d / batch size %d must be positive", ErrInvalidConfig, c.BufferSize, c.BatchSize)
	}
	if c.ResendMessageTimeout == 0 || c.FlushBatchTimeout == 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.FlexibleQuorum != nil {
		if err := c.FlexibleQuorum.Validate(len(c.Nodes)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Peers returns Nodes without PID.
func (c Config) Peers() []NodeID {
	peers := make([]NodeID, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		if n != c.PID {
			peers = append(peers, n)
		}
	}
	return peers
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
