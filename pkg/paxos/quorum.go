package paxos

import "fmt"

// FlexibleQuorum sets the read (prepare) and write (accept) quorum sizes
// independently, trading latency against fault tolerance.
type FlexibleQuorum struct {
	// Nodes a leader must consult to get an up-to-date view of the log.
	ReadQuorumSize int
	// Acknowledgements a leader needs to commit an entry.
	WriteQuorumSize int
}

// Validate checks that every read quorum intersects every write quorum in a
// cluster of numNodes.
func (fq FlexibleQuorum) Validate(numNodes int) error {
	if fq.ReadQuorumSize < 1 || fq.ReadQuorumSize > numNodes {
		return fmt.Errorf("read quorum size %d outside [1, %d]", fq.ReadQuorumSize, numNodes)
	}
	if fq.WriteQuorumSize < 1 || fq.WriteQuorumSize > numNodes {
		return fmt.Errorf("write quorum size %d outside [1, %d]", fq.WriteQuorumSize, numNodes)
	}
	if fq.ReadQuorumSize+fq.WriteQuorumSize <= numNodes {
		return fmt.Errorf("read quorum %d and write quorum %d do not intersect in %d nodes",
			fq.ReadQuorumSize, fq.WriteQuorumSize, numNodes)
	}
	return nil
}

// QuorumKind tells whether a Quorum is a majority or a flexible one.
type QuorumKind uint8

const (
	Majority QuorumKind = iota
	Flexible
)

// Quorum holds the thresholds for the prepare and accept phases. A majority
// quorum uses the same threshold for both.
type Quorum struct {
	Kind     QuorumKind
	majority int
	flexible FlexibleQuorum
}

// NewQuorum builds a majority quorum over numNodes unless a flexible
// configuration is given, in which case it is used verbatim.
func NewQuorum(flex *FlexibleQuorum, numNodes int) Quorum {
	if flex != nil {
		return FlexibleQuorumOf(*flex)
	}
	return MajorityOf(numNodes/2 + 1)
}

// MajorityOf is a quorum of n nodes in both phases.
func MajorityOf(n int) Quorum { return Quorum{Kind: Majority, majority: n} }

// FlexibleQuorumOf uses fq verbatim; it does not validate it.
func FlexibleQuorumOf(fq FlexibleQuorum) Quorum { return Quorum{Kind: Flexible, flexible: fq} }

// IsPrepareQuorum reports whether count promises complete the prepare phase.
func (q Quorum) IsPrepareQuorum(count int) bool {
	if q.Kind == Flexible {
		return count >= q.flexible.ReadQuorumSize
	}
	return count >= q.majority
}

// IsAcceptQuorum reports whether count acknowledgements choose an entry.
func (q Quorum) IsAcceptQuorum(count int) bool {
	if q.Kind == Flexible {
		return count >= q.flexible.WriteQuorumSize
	}
	return count >= q.majority
}

// Sizes returns the prepare and accept thresholds.
func (q Quorum) Sizes() (read, write int) {
	if q.Kind == Flexible {
		return q.flexible.ReadQuorumSize, q.flexible.WriteQuorumSize
	}
	return q.majority, q.majority
}

func (q Quorum) String() string {
	if q.Kind == Flexible {
		return fmt.Sprintf("Flexible(read=%d, write=%d)", q.flexible.ReadQuorumSize, q.flexible.WriteQuorumSize)
	}
	return fmt.Sprintf("Majority(%d)", q.majority)
}
