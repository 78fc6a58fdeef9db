package paxos

import (
	"bytes"
	"fmt"
	"slices"
)

// NodeID identifies a cluster member for the lifetime of the cluster.
type NodeID = uint64

// ConfigurationID identifies a set of servers forming one cluster configuration.
type ConfigurationID = uint32

// Ballot is the totally ordered round identifier handed to the replica by
// the ballot-election collaborator. Ballots compare by round, then by
// priority, then by the proposing node's id.
type Ballot struct {
	ConfigID ConfigurationID
	N        uint32
	Priority uint32
	PID      NodeID
}

func NewBallot(n uint32, pid NodeID) Ballot {
	return Ballot{N: n, PID: pid}
}

// Compare returns -1, 0 or +1.
func (b Ballot) Compare(o Ballot) int {
	switch {
	case b.N != o.N:
		return cmpOrdered(b.N, o.N)
	case b.Priority != o.Priority:
		return cmpOrdered(b.Priority, o.Priority)
	default:
		return cmpOrdered(b.PID, o.PID)
	}
}

func (b Ballot) Less(o Ballot) bool    { return b.Compare(o) < 0 }
func (b Ballot) Greater(o Ballot) bool { return b.Compare(o) > 0 }
func (b Ballot) IsZero() bool          { return b.N == 0 && b.Priority == 0 && b.PID == 0 }

func (b Ballot) String() string {
	return fmt.Sprintf("(n=%d, prio=%d, pid=%d)", b.N, b.Priority, b.PID)
}

// ClusterConfig describes the configuration a stop sign hands over to.
type ClusterConfig struct {
	ConfigID       ConfigurationID
	Nodes          []NodeID
	FlexibleQuorum *FlexibleQuorum
}

// StopSign is the terminal marker of a configuration's log.
type StopSign struct {
	NextConfig ClusterConfig
	Metadata   []byte
}

func (ss StopSign) Equal(o StopSign) bool {
	if ss.NextConfig.ConfigID != o.NextConfig.ConfigID ||
		!slices.Equal(ss.NextConfig.Nodes, o.NextConfig.Nodes) ||
		!bytes.Equal(ss.Metadata, o.Metadata) {
		return false
	}
	a, b := ss.NextConfig.FlexibleQuorum, o.NextConfig.FlexibleQuorum
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SnapshotType is an opaque application snapshot. Complete snapshots replace
// the state up to their index; delta snapshots are applied on top of an
// existing one.
type SnapshotType struct {
	Complete bool
	Data     []byte
}

func (s SnapshotType) Equal(o SnapshotType) bool {
	return s.Complete == o.Complete && bytes.Equal(s.Data, o.Data)
}

func cmpOrdered[T uint32 | uint64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
