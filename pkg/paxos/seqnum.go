package paxos

import "fmt"

// MessageStatus classifies an incoming accept-phase message against the
// last sequence number the receiver has processed.
type MessageStatus uint8

const (
	// Expected is the next message of the current stream.
	Expected MessageStatus = iota
	// DroppedPreceding means at least one earlier message was lost.
	DroppedPreceding
	// Outdated is a duplicate or a message from an older session.
	Outdated
)

func (s MessageStatus) String() string {
	switch s {
	case Expected:
		return "Expected"
	case DroppedPreceding:
		return "DroppedPreceding"
	case Outdated:
		return "Outdated"
	}
	return fmt.Sprintf("MessageStatus(%d)", uint8(s))
}

// SequenceNumber orders messages on a logical connection. Session changes on
// reconnect; counter grows by one per message within a session.
type SequenceNumber struct {
	Session uint64
	Counter uint64
}

// Compare orders lexicographically by (Session, Counter).
func (s SequenceNumber) Compare(o SequenceNumber) int {
	if s.Session != o.Session {
		return cmpOrdered(s.Session, o.Session)
	}
	return cmpOrdered(s.Counter, o.Counter)
}

func (s SequenceNumber) Less(o SequenceNumber) bool { return s.Compare(o) < 0 }

// CheckMsgStatus compares s, the last processed sequence number, with the
// sequence number of an incoming message.
func (s SequenceNumber) CheckMsgStatus(incoming SequenceNumber) MessageStatus {
	switch {
	case incoming.Session == s.Session && incoming.Counter == s.Counter+1:
		return Expected
	case incoming.Compare(s) <= 0:
		return Outdated
	default:
		return DroppedPreceding
	}
}

func (s SequenceNumber) String() string {
	return fmt.Sprintf("%d.%d", s.Session, s.Counter)
}
