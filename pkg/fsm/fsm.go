// Package fsm holds the state machines decided log entries are applied to.
package fsm

// FSM consumes decided commands in log order.
type FSM interface {
	Apply(command []byte) (result []byte)
	Snapshot() ([]byte, error)
	Restore(snapshot []byte) error
}
