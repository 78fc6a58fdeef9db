package fsm

import (
	"bytes"
	"encoding/gob"
	"fmt"

	sync "github.com/sasha-s/go-deadlock"
)

const (
	OpSet    = "set"
	OpDelete = "delete"
)

// Command is the gob-encoded payload of a KVStore log entry.
type Command struct {
	Op    string
	Key   string
	Value string
}

func EncodeCommand(c Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeCommand(data []byte) (Command, error) {
	var c Command
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c)
	return c, err
}

// KVStore is a string map driven by decided Commands.
type KVStore struct {
	mu      sync.RWMutex
	data    map[string]string
	applied int
}

var _ FSM = (*KVStore)(nil)

func NewKVStore() *KVStore {
	return &KVStore{
		data: make(map[string]string),
	}
}

// Apply returns "OK" for a command it executed and nil for one it could not
// decode or does not know.
func (kv *KVStore) Apply(command []byte) []byte {
	cmd, err := DecodeCommand(command)
	if err != nil {
		return nil
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()

	switch cmd.Op {
	case OpSet:
		kv.data[cmd.Key] = cmd.Value
	case OpDelete:
		delete(kv.data, cmd.Key)
	default:
		return nil
	}
	kv.applied++
	return []byte("OK")
}

func (kv *KVStore) Get(key string) (string, bool) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	return v, ok
}

// Applied is the number of commands executed since creation or the last
// Restore.
func (kv *KVStore) Applied() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return kv.applied
}

func (kv *KVStore) Snapshot() ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(kv.data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (kv *KVStore) Restore(snapshot []byte) error {
	data := make(map[string]string)
	if err := gob.NewDecoder(bytes.NewReader(snapshot)).Decode(&data); err != nil {
		return fmt.Errorf("restore kv snapshot: %w", err)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data = data
	kv.applied = 0
	return nil
}
