package paxos

import "fmt"

type logBounds struct {
	compacted uint64
	logLen    uint64
	decided   uint64
	stopSign  *StopSign
	snapshot  *SnapshotType
}

func (s *Server[T]) bounds() (logBounds, error) {
	var b logBounds
	var err error
	if b.compacted, err = s.storage.CompactedIdx(); err != nil {
		return b, fmt.Errorf("read compacted idx: %w", err)
	}
	if b.logLen, err = s.storage.LogLen(); err != nil {
		return b, fmt.Errorf("read log len: %w", err)
	}
	if b.decided, err = s.storage.DecidedIdx(); err != nil {
		return b, fmt.Errorf("read decided idx: %w", err)
	}
	if b.stopSign, err = s.storage.StopSign(); err != nil {
		return b, fmt.Errorf("read stopsign: %w", err)
	}
	if b.snapshot, err = s.storage.Snapshot(); err != nil {
		return b, fmt.Errorf("read snapshot: %w", err)
	}
	return b, nil
}

func (b logBounds) indexEntry(idx uint64) (IndexEntry, bool) {
	switch {
	case idx < b.compacted:
		return IndexEntry{Kind: IndexEntryCompacted}, true
	case idx < b.logLen:
		return IndexEntry{Kind: IndexEntryEntry}, true
	case idx == b.logLen && b.stopSign != nil:
		return IndexEntry{Kind: IndexEntryStopSign, StopSign: b.stopSign}, true
	}
	return IndexEntry{}, false
}

func compactedEntry[T any](b logBounds) LogEntry[T] {
	if b.snapshot != nil {
		return SnapshottedLogEntry[T](b.compacted, *b.snapshot)
	}
	return TrimmedEntry[T](b.compacted)
}

// IndexEntry classifies idx as a regular entry, compacted, or the stop sign.
func (s *Server[T]) IndexEntry(idx uint64) (IndexEntry, bool, error) {
	b, err := s.bounds()
	if err != nil {
		return IndexEntry{}, false, err
	}
	ie, ok := b.indexEntry(idx)
	return ie, ok, nil
}

// Read returns the log entry at idx, or false if idx is past the end of the log.
func (s *Server[T]) Read(idx uint64) (LogEntry[T], bool, error) {
	b, err := s.bounds()
	if err != nil {
		return LogEntry[T]{}, false, err
	}
	ie, ok := b.indexEntry(idx)
	if !ok {
		return LogEntry[T]{}, false, nil
	}
	switch ie.Kind {
	case IndexEntryCompacted:
		return compactedEntry[T](b), true, nil
	case IndexEntryStopSign:
		return StopSignLogEntry[T](*ie.StopSign, b.decided > idx), true, nil
	}
	ents, err := s.storage.Entries(idx, idx+1)
	if err != nil {
		return LogEntry[T]{}, false, fmt.Errorf("read entries: %w", err)
	}
	if idx < b.decided {
		return DecidedEntry(ents[0]), true, nil
	}
	return UndecidedEntry(ents[0]), true, nil
}

// ReadEntries returns the entries in [from, to). A compacted prefix of the
// range is reported as a single Snapshotted or Trimmed entry.
func (s *Server[T]) ReadEntries(from, to uint64) ([]LogEntry[T], error) {
	b, err := s.bounds()
	if err != nil {
		return nil, err
	}
	return s.readEntries(b, from, to)
}

func (s *Server[T]) readEntries(b logBounds, from, to uint64) ([]LogEntry[T], error) {
	if from >= to {
		return nil, nil
	}
	var out []LogEntry[T]
	if from < b.compacted {
		out = append(out, compactedEntry[T](b))
		from = b.compacted
	}
	end := min(to, b.logLen)
	if from < end {
		ents, err := s.storage.Entries(from, end)
		if err != nil {
			return nil, fmt.Errorf("read entries: %w", err)
		}
		for i, e := range ents {
			if from+uint64(i) < b.decided {
				out = append(out, DecidedEntry(e))
			} else {
				out = append(out, UndecidedEntry(e))
			}
		}
	}
	if b.stopSign != nil && to > b.logLen && from <= b.logLen {
		out = append(out, StopSignLogEntry[T](*b.stopSign, b.decided > b.logLen))
	}
	return out, nil
}

// ReadDecidedSuffix returns every decided entry from index from onwards.
func (s *Server[T]) ReadDecidedSuffix(from uint64) ([]LogEntry[T], error) {
	b, err := s.bounds()
	if err != nil {
		return nil, err
	}
	return s.readEntries(b, from, b.decided)
}

// Snapshot replaces the decided prefix below idx with snap.
func (s *Server[T]) Snapshot(idx uint64, snap SnapshotType) error {
	dec, err := s.storage.DecidedIdx()
	if err != nil {
		return fmt.Errorf("read decided idx: %w", err)
	}
	if idx > dec {
		return fmt.Errorf("snapshot at %d (decided %d): %w", idx, dec, ErrIndexNotDecided)
	}
	if err := s.storage.SetSnapshot(&snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return s.trim(idx)
}

// Trim drops the decided prefix below idx without keeping a snapshot.
func (s *Server[T]) Trim(idx uint64) error {
	dec, err := s.storage.DecidedIdx()
	if err != nil {
		return fmt.Errorf("read decided idx: %w", err)
	}
	if idx > dec {
		return fmt.Errorf("trim at %d (decided %d): %w", idx, dec, ErrIndexNotDecided)
	}
	if err := s.storage.SetSnapshot(nil); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return s.trim(idx)
}

func (s *Server[T]) trim(idx uint64) error {
	if err := s.storage.Trim(idx); err != nil {
		return fmt.Errorf("trim: %w", err)
	}
	return nil
}
