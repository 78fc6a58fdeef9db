package paxos

import "errors"

var (
	ErrNotLeader       = errors.New("paxos: not the leader")
	ErrBufferFull      = errors.New("paxos: proposal buffer full")
	ErrStopped         = errors.New("paxos: configuration stopped by stop sign")
	ErrStaleBallot     = errors.New("paxos: ballot not greater than promised ballot")
	ErrIndexNotDecided = errors.New("paxos: index not decided")
	ErrInvalidConfig   = errors.New("paxos: invalid config")
	ErrNodeStopped     = errors.New("paxos: node stopped")
)
