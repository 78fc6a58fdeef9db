package paxos

// Storage is the durable state of a replica. Log indexes are absolute: the
// first entry ever appended has index 0 and indexes survive compaction.
type Storage[T any] interface {
	// AppendEntries appends entries and returns the new log length.
	AppendEntries(entries []T) (uint64, error)
	// AppendOnPrefix drops every entry at or after fromIdx, then appends
	// entries. It returns the new log length.
	AppendOnPrefix(fromIdx uint64, entries []T) (uint64, error)
	// Entries returns the entries in [from, to). from must not be below
	// the compacted index.
	Entries(from, to uint64) ([]T, error)
	LogLen() (uint64, error)

	SetPromise(n Ballot) error
	Promise() (Ballot, error)
	SetAcceptedRound(n Ballot) error
	AcceptedRound() (Ballot, error)
	SetDecidedIdx(idx uint64) error
	DecidedIdx() (uint64, error)

	// SetStopSign stores ss; nil removes the stop sign.
	SetStopSign(ss *StopSign) error
	StopSign() (*StopSign, error)

	SetSnapshot(snap *SnapshotType) error
	Snapshot() (*SnapshotType, error)
	// Trim drops every entry below idx. Trimming past the end of the log
	// leaves an empty log that continues at idx.
	Trim(idx uint64) error
	CompactedIdx() (uint64, error)

	Close() error
}
