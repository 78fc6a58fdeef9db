package paxos

import "fmt"

// PromiseMetaData is a promise without its log sync. It is ordered so the
// leader can pick the most up-to-date follower to synchronise from: the
// accepted ballot dominates and the accepted index breaks ties.
// DecidedIdx is carried along but is not part of the order.
type PromiseMetaData struct {
	NAccepted   Ballot
	AcceptedIdx uint64
	DecidedIdx  uint64
	PID         NodeID
}

func (m PromiseMetaData) Equal(o PromiseMetaData) bool {
	return m.NAccepted == o.NAccepted && m.AcceptedIdx == o.AcceptedIdx && m.PID == o.PID
}

func (m PromiseMetaData) Greater(o PromiseMetaData) bool {
	if m.Equal(o) {
		return false
	}
	c := m.NAccepted.Compare(o.NAccepted)
	return c > 0 || (c == 0 && m.AcceptedIdx > o.AcceptedIdx)
}

// Less is the complement of Greater for unequal metadata.
func (m PromiseMetaData) Less(o PromiseMetaData) bool {
	return !m.Equal(o) && !m.Greater(o)
}

func (m PromiseMetaData) String() string {
	return fmt.Sprintf("{pid=%d n_accepted=%s accepted_idx=%d decided_idx=%d}",
		m.PID, m.NAccepted, m.AcceptedIdx, m.DecidedIdx)
}

type PromiseStatus uint8

const (
	// NotPromised: the peer has not promised our ballot yet.
	NotPromised PromiseStatus = iota
	// Promised: the peer promised our ballot; Meta describes its log.
	Promised
	// PromisedHigher: the peer promised a greater ballot, so it must not be
	// prepared again until we hold a fresher one.
	PromisedHigher
)

func (s PromiseStatus) String() string {
	switch s {
	case NotPromised:
		return "NotPromised"
	case Promised:
		return "Promised"
	case PromisedHigher:
		return "PromisedHigher"
	}
	return fmt.Sprintf("PromiseStatus(%d)", uint8(s))
}

// PromiseState is the per-peer promise record of a leadership attempt.
type PromiseState struct {
	Status PromiseStatus
	Meta   PromiseMetaData
}
