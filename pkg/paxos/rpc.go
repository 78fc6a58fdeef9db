package paxos

import "encoding/gob"

// Message is one protocol message between two replicas.
type Message struct {
	From NodeID
	To   NodeID
	Msg  interface{}
}

// PrepareReq asks the leader to prepare the sender again, e.g. after it
// reconnected or detected a gap in the accept stream.
type PrepareReq struct {
	N Ballot
}

type Prepare struct {
	N           Ballot
	DecidedIdx  uint64
	NAccepted   Ballot
	AcceptedIdx uint64
}

type Promise[T any] struct {
	N           Ballot
	NAccepted   Ballot
	DecidedIdx  uint64
	AcceptedIdx uint64
	LogSync     *LogSync[T]
}

// AcceptSync opens a new accept stream to a follower and synchronises its log.
type AcceptSync[T any] struct {
	N          Ballot
	SeqNum     SequenceNumber
	DecidedIdx uint64
	LogSync    LogSync[T]
}

type AcceptDecide[T any] struct {
	N          Ballot
	SeqNum     SequenceNumber
	DecidedIdx uint64
	Entries    []T
}

type AcceptStopSign struct {
	N        Ballot
	SeqNum   SequenceNumber
	StopSign StopSign
}

type Accepted struct {
	N           Ballot
	AcceptedIdx uint64
}

type Decide struct {
	N          Ballot
	SeqNum     SequenceNumber
	DecidedIdx uint64
}

// NotAccepted tells a leader the sender has promised a greater ballot N.
type NotAccepted struct {
	N Ballot
}

// RegisterGob registers the message types carrying entries of type T so they
// can travel inside Message over gob-encoded transports.
func RegisterGob[T any]() {
	gob.Register(PrepareReq{})
	gob.Register(Prepare{})
	gob.Register(Promise[T]{})
	gob.Register(AcceptSync[T]{})
	gob.Register(AcceptDecide[T]{})
	gob.Register(AcceptStopSign{})
	gob.Register(Accepted{})
	gob.Register(Decide{})
	gob.Register(NotAccepted{})
	gob.Register(ProposalForward[T]{})
}

// ProposalForward carries proposals from a follower to the leader.
type ProposalForward[T any] struct {
	Entries []T
}
