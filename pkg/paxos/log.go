package paxos

import (
	"fmt"
	"reflect"
)

// LogSync brings another server's log up to date with ours: apply the
// decided snapshot if present, then append Suffix at SyncIdx, then the stop
// sign if present.
type LogSync[T any] struct {
	DecidedSnapshot *SnapshotType
	Suffix          []T
	// Log index Suffix applies at. Also the compacted index of
	// DecidedSnapshot when one is attached.
	SyncIdx  uint64
	StopSign *StopSign
}

func (ls *LogSync[T]) Equal(o *LogSync[T]) bool {
	if ls == nil || o == nil {
		return ls == o
	}
	if ls.SyncIdx != o.SyncIdx || !reflect.DeepEqual(ls.Suffix, o.Suffix) {
		return false
	}
	if !optEqual(ls.DecidedSnapshot, o.DecidedSnapshot, SnapshotType.Equal) {
		return false
	}
	return optEqual(ls.StopSign, o.StopSign, StopSign.Equal)
}

// AcceptedMetaData pairs the entries the local append path flushed with the
// resulting end of the log.
type AcceptedMetaData[T any] struct {
	AcceptedIdx uint64
	Entries     []T
}

type LogEntryKind uint8

const (
	// Decided entries are chosen and never change.
	Decided LogEntryKind = iota
	// Undecided entries are accepted locally but may still be removed.
	Undecided
	// Trimmed entries were compacted away without a snapshot.
	Trimmed
	// Snapshotted entries are covered by a snapshot.
	Snapshotted
	// StopSignEntry is the end of this configuration's log.
	StopSignEntry
)

func (k LogEntryKind) String() string {
	switch k {
	case Decided:
		return "Decided"
	case Undecided:
		return "Undecided"
	case Trimmed:
		return "Trimmed"
	case Snapshotted:
		return "Snapshotted"
	case StopSignEntry:
		return "StopSign"
	}
	return fmt.Sprintf("LogEntryKind(%d)", uint8(k))
}

// SnapshottedEntry is what a read below the compacted index returns when a
// snapshot covers it.
type SnapshottedEntry struct {
	TrimmedIdx uint64
	Snapshot   SnapshotType
}

func (s SnapshottedEntry) Equal(o SnapshottedEntry) bool {
	return s.TrimmedIdx == o.TrimmedIdx && s.Snapshot.Equal(o.Snapshot)
}

// LogEntry is the result of reading one index of the log. Only the fields
// belonging to Kind are set.
type LogEntry[T any] struct {
	Kind LogEntryKind

	// Decided, Undecided
	Entry T
	// Trimmed
	TrimmedIdx uint64
	// Snapshotted
	Snapshotted *SnapshottedEntry
	// StopSignEntry; StopSignDecided tells whether the next configuration
	// may be started.
	StopSign        *StopSign
	StopSignDecided bool
}

func DecidedEntry[T any](e T) LogEntry[T]   { return LogEntry[T]{Kind: Decided, Entry: e} }
func UndecidedEntry[T any](e T) LogEntry[T] { return LogEntry[T]{Kind: Undecided, Entry: e} }

func TrimmedEntry[T any](idx uint64) LogEntry[T] {
	return LogEntry[T]{Kind: Trimmed, TrimmedIdx: idx}
}

func SnapshottedLogEntry[T any](trimmedIdx uint64, snap SnapshotType) LogEntry[T] {
	return LogEntry[T]{Kind: Snapshotted, Snapshotted: &SnapshottedEntry{TrimmedIdx: trimmedIdx, Snapshot: snap}}
}

func StopSignLogEntry[T any](ss StopSign, decided bool) LogEntry[T] {
	return LogEntry[T]{Kind: StopSignEntry, StopSign: &ss, StopSignDecided: decided}
}

func (e LogEntry[T]) Equal(o LogEntry[T]) bool {
	if e.Kind != o.Kind {
		return false
	}
	switch e.Kind {
	case Decided, Undecided:
		return reflect.DeepEqual(e.Entry, o.Entry)
	case Trimmed:
		return e.TrimmedIdx == o.TrimmedIdx
	case Snapshotted:
		return optEqual(e.Snapshotted, o.Snapshotted, SnapshottedEntry.Equal)
	case StopSignEntry:
		return e.StopSignDecided == o.StopSignDecided && optEqual(e.StopSign, o.StopSign, StopSign.Equal)
	}
	return false
}

type IndexEntryKind uint8

const (
	IndexEntryEntry IndexEntryKind = iota
	IndexEntryCompacted
	IndexEntryStopSign
)

// IndexEntry says whether an index holds a regular entry, has been
// compacted, or holds the stop sign.
type IndexEntry struct {
	Kind     IndexEntryKind
	StopSign *StopSign
}

func (ie IndexEntry) Equal(o IndexEntry) bool {
	return ie.Kind == o.Kind && optEqual(ie.StopSign, o.StopSign, StopSign.Equal)
}

func optEqual[V any](a, b *V, eq func(V, V) bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return eq(*a, *b)
}
