// Package transport moves protocol messages between replicas.
package transport

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUnknownNode = errors.New("transport: target node not found")
	ErrPartitioned = errors.New("transport: network partition")
	ErrDropped     = errors.New("transport: message dropped")
	ErrClosed      = errors.New("transport: closed")
)

// Envelope is a payload in flight from one replica to another. Session
// identifies the link it travelled on; a new Session for the same sender
// means the link was re-established and messages may have been lost.
type Envelope struct {
	From    uint64
	To      uint64
	Session uuid.UUID
	Payload interface{}
}

type Transport interface {
	Send(to uint64, payload interface{}) error
	Incoming() <-chan Envelope
	Close() error
}
