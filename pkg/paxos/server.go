package paxos

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

type Role uint8

const (
	Follower Role = iota
	Leader
)

func (r Role) String() string {
	if r == Leader {
		return "leader"
	}
	return "follower"
}

type Phase uint8

const (
	PhaseNone Phase = iota
	PhasePrepare
	PhaseAccept
	// PhaseRecover: a follower lost part of the accept stream and waits to
	// be prepared again.
	PhaseRecover
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseAccept:
		return "accept"
	case PhaseRecover:
		return "recover"
	}
	return "none"
}

// Server is one Sequence Paxos replica. It is driven by exactly one
// goroutine: every inbound message, tick and proposal is folded in by a
// single method call, and outbound messages are collected with
// TakeOutgoing. Server does no locking.
type Server[T any] struct {
	cfg     Config
	pid     NodeID
	peers   []NodeID
	quorum  Quorum
	lg      *zap.Logger
	storage Storage[T]

	role   Role
	phase  Phase
	leader Ballot
	ls     *LeaderState[T]

	// last accept-phase sequence number processed from the leader
	currentSeqNum SequenceNumber

	buffer []T
	batch  []T

	resendClock *LogicalClock
	flushClock  *LogicalClock

	outgoing []Message
}

func NewServer[T any](cfg Config, storage Storage[T]) (*Server[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server[T]{
		cfg:         cfg,
		pid:         cfg.PID,
		peers:       cfg.Peers(),
		quorum:      NewQuorum(cfg.FlexibleQuorum, len(cfg.Nodes)),
		lg:          cfg.logger(),
		storage:     storage,
		role:        Follower,
		phase:       PhaseNone,
		resendClock: NewLogicalClock(cfg.ResendMessageTimeout),
		flushClock:  NewLogicalClock(cfg.FlushBatchTimeout),
	}

	prom, err := storage.Promise()
	if err != nil {
		return nil, fmt.Errorf("load promise: %w", err)
	}
	s.leader = prom
	s.lg.Info("server initialized",
		zap.Uint64("pid", s.pid),
		zap.Uint64s("peers", s.peers),
		zap.Stringer("quorum", s.quorum),
		zap.Stringer("promise", prom),
	)
	return s, nil
}

func (s *Server[T]) PID() NodeID { return s.pid }

// Leader returns the ballot of the leader this replica follows or is.
func (s *Server[T]) Leader() (Ballot, bool) {
	return s.leader, !s.leader.IsZero()
}

func (s *Server[T]) IsLeader() bool {
	return s.role == Leader && s.phase == PhaseAccept
}

// TakeOutgoing returns the messages produced since the last call.
func (s *Server[T]) TakeOutgoing() []Message {
	out := s.outgoing
	s.outgoing = nil
	return out
}

func (s *Server[T]) send(to NodeID, msg interface{}) {
	s.outgoing = append(s.outgoing, Message{From: s.pid, To: to, Msg: msg})
}

func (s *Server[T]) DecidedIdx() (uint64, error) { return s.storage.DecidedIdx() }

// AcceptedIdx is the log length, counting an accepted stop sign as one slot.
func (s *Server[T]) AcceptedIdx() (uint64, error) {
	n, err := s.storage.LogLen()
	if err != nil {
		return 0, err
	}
	ss, err := s.storage.StopSign()
	if err != nil {
		return 0, err
	}
	if ss != nil {
		n++
	}
	return n, nil
}

// Handle folds one inbound message into the replica. Messages from nodes
// outside the current configuration are dropped.
func (s *Server[T]) Handle(m Message) error {
	if !slices.Contains(s.peers, m.From) {
		s.lg.Warn("dropping message from unknown node",
			zap.Uint64("pid", s.pid), zap.Uint64("from", m.From), zap.String("type", fmt.Sprintf("%T", m.Msg)))
		return nil
	}
	switch msg := m.Msg.(type) {
	case Prepare:
		return s.handlePrepare(msg, m.From)
	case Promise[T]:
		return s.handlePromise(msg, m.From)
	case AcceptSync[T]:
		return s.handleAcceptSync(msg, m.From)
	case AcceptDecide[T]:
		return s.handleAcceptDecide(msg, m.From)
	case AcceptStopSign:
		return s.handleAcceptStopSign(msg, m.From)
	case Accepted:
		return s.handleAccepted(msg, m.From)
	case Decide:
		return s.handleDecide(msg)
	case NotAccepted:
		s.handleNotAccepted(msg, m.From)
	case PrepareReq:
		return s.handlePrepareReq(m.From)
	case ProposalForward[T]:
		s.handleProposalForward(msg, m.From)
	default:
		s.lg.Warn("unknown message type", zap.Uint64("pid", s.pid), zap.String("type", fmt.Sprintf("%T", m.Msg)))
	}
	return nil
}

// Tick advances the logical clocks and performs the periodic work they
// trigger.
func (s *Server[T]) Tick() error {
	if s.resendClock.TickAndCheckTimeout() {
		s.resend()
	}
	if s.flushClock.TickAndCheckTimeout() && len(s.batch) > 0 {
		return s.flushBatch()
	}
	return nil
}

func (s *Server[T]) resend() {
	switch {
	case s.role == Leader:
		// peers that missed our Prepare, or restarted since, are prepared
		// again in both phases
		for _, p := range s.ls.PreparablePeers(s.peers) {
			s.sendPrepare(p)
		}
	case s.role == Follower && s.phase == PhaseRecover:
		s.send(s.leader.PID, PrepareReq{N: s.leader})
	}
}

// Reconnected is called when the connection to pid was re-established.
func (s *Server[T]) Reconnected(pid NodeID) {
	if pid == s.pid {
		return
	}
	switch s.role {
	case Leader:
		if s.phase == PhasePrepare && s.ls.PromiseStateOf(pid).Status == NotPromised {
			s.sendPrepare(pid)
		}
	case Follower:
		if pid == s.leader.PID {
			s.reconnectToLeader()
		}
	}
}

func (s *Server[T]) reconnectToLeader() {
	s.lg.Info("requesting resync from leader", zap.Uint64("pid", s.pid), zap.Stringer("leader", s.leader))
	s.phase = PhaseRecover
	s.send(s.leader.PID, PrepareReq{N: s.leader})
}

// HandleLeader takes the output of ballot election: n is the new leader's
// ballot. If n is ours the replica starts a leadership attempt.
func (s *Server[T]) HandleLeader(n Ballot) error {
	prom, err := s.storage.Promise()
	if err != nil {
		return fmt.Errorf("read promise: %w", err)
	}
	if !n.Greater(prom) {
		return ErrStaleBallot
	}
	if n.PID != s.pid {
		if s.role == Leader {
			s.stepDown()
		}
		s.leader = n
		return nil
	}

	if err := s.storage.SetPromise(n); err != nil {
		return fmt.Errorf("write promise: %w", err)
	}
	s.leader = n
	s.role = Leader
	s.phase = PhasePrepare
	s.ls = NewLeaderState[T](n, s.cfg.Nodes, s.quorum)
	s.lg.Info("became candidate", zap.Uint64("pid", s.pid), zap.Stringer("ballot", n))

	own, err := s.localPromise(n, nil)
	if err != nil {
		return err
	}
	if s.ls.SetPromise(own, s.pid, true) {
		return s.handleMajorityPromises()
	}
	for _, p := range s.ls.PreparablePeers(s.peers) {
		s.sendPrepare(p)
	}
	return nil
}

func (s *Server[T]) stepDown() {
	s.lg.Info("stepping down", zap.Uint64("pid", s.pid), zap.Stringer("ballot", s.ls.NLeader))
	s.role = Follower
	s.phase = PhaseNone
	s.ls = nil
	s.batch = nil
}

func (s *Server[T]) localPromise(n Ballot, logSync *LogSync[T]) (Promise[T], error) {
	na, err := s.storage.AcceptedRound()
	if err != nil {
		return Promise[T]{}, fmt.Errorf("read accepted round: %w", err)
	}
	acc, err := s.AcceptedIdx()
	if err != nil {
		return Promise[T]{}, fmt.Errorf("read accepted idx: %w", err)
	}
	dec, err := s.storage.DecidedIdx()
	if err != nil {
		return Promise[T]{}, fmt.Errorf("read decided idx: %w", err)
	}
	return Promise[T]{N: n, NAccepted: na, DecidedIdx: dec, AcceptedIdx: acc, LogSync: logSync}, nil
}

func (s *Server[T]) sendPrepare(to NodeID) {
	own, err := s.localPromise(s.ls.NLeader, nil)
	if err != nil {
		s.lg.Error("failed to build prepare", zap.Uint64("pid", s.pid), zap.Error(err))
		return
	}
	s.send(to, Prepare{
		N:           s.ls.NLeader,
		DecidedIdx:  own.DecidedIdx,
		NAccepted:   own.NAccepted,
		AcceptedIdx: own.AcceptedIdx,
	})
}

func (s *Server[T]) handlePrepare(prep Prepare, from NodeID) error {
	prom, err := s.storage.Promise()
	if err != nil {
		return fmt.Errorf("read promise: %w", err)
	}
	if prom.Greater(prep.N) {
		s.send(from, NotAccepted{N: prom})
		return nil
	}
	if s.role == Leader && prep.N.PID != s.pid {
		s.stepDown()
	}
	if err := s.storage.SetPromise(prep.N); err != nil {
		return fmt.Errorf("write promise: %w", err)
	}
	s.leader = prep.N
	s.role = Follower
	s.phase = PhasePrepare
	s.currentSeqNum = SequenceNumber{}

	own, err := s.localPromise(prep.N, nil)
	if err != nil {
		return err
	}
	var syncFrom uint64
	var needSync bool
	switch c := own.NAccepted.Compare(prep.NAccepted); {
	case c > 0:
		syncFrom, needSync = prep.DecidedIdx, true
	case c == 0 && own.AcceptedIdx > prep.AcceptedIdx:
		syncFrom, needSync = prep.AcceptedIdx, true
	}
	if needSync {
		if own.LogSync, err = s.createLogSync(syncFrom); err != nil {
			return err
		}
	}
	s.lg.Debug("promised", zap.Uint64("pid", s.pid), zap.Stringer("ballot", prep.N), zap.Bool("log_sync", needSync))
	s.send(from, own)
	return nil
}

func (s *Server[T]) createLogSync(syncFrom uint64) (*LogSync[T], error) {
	compacted, err := s.storage.CompactedIdx()
	if err != nil {
		return nil, fmt.Errorf("read compacted idx: %w", err)
	}
	logLen, err := s.storage.LogLen()
	if err != nil {
		return nil, fmt.Errorf("read log len: %w", err)
	}
	sync := &LogSync[T]{SyncIdx: min(syncFrom, logLen)}
	if sync.SyncIdx < compacted {
		if sync.DecidedSnapshot, err = s.storage.Snapshot(); err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		sync.SyncIdx = compacted
	}
	if sync.Suffix, err = s.storage.Entries(sync.SyncIdx, logLen); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	if sync.StopSign, err = s.storage.StopSign(); err != nil {
		return nil, fmt.Errorf("read stopsign: %w", err)
	}
	return sync, nil
}

func (s *Server[T]) applyLogSync(sync *LogSync[T]) error {
	logLen, err := s.storage.LogLen()
	if err != nil {
		return fmt.Errorf("read log len: %w", err)
	}
	if sync.DecidedSnapshot != nil {
		if err := s.storage.SetSnapshot(sync.DecidedSnapshot); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if sync.DecidedSnapshot != nil || sync.SyncIdx > logLen {
		if err := s.storage.Trim(sync.SyncIdx); err != nil {
			return fmt.Errorf("trim: %w", err)
		}
	}
	if _, err := s.storage.AppendOnPrefix(sync.SyncIdx, sync.Suffix); err != nil {
		return fmt.Errorf("append on prefix: %w", err)
	}
	if err := s.storage.SetStopSign(sync.StopSign); err != nil {
		return fmt.Errorf("write stopsign: %w", err)
	}
	return nil
}

func (s *Server[T]) handlePromise(prom Promise[T], from NodeID) error {
	if s.ls == nil || prom.N != s.ls.NLeader {
		return nil
	}
	switch s.phase {
	case PhasePrepare:
		if s.ls.SetPromise(prom, from, true) {
			return s.handleMajorityPromises()
		}
	case PhaseAccept:
		s.ls.SetPromise(prom, from, false)
		return s.sendAcceptSync(from)
	}
	return nil
}

func (s *Server[T]) handleMajorityPromises() error {
	maxMeta := s.ls.MaxPromiseMeta()
	if sync := s.ls.TakeMaxPromiseSync(); sync != nil && maxMeta.PID != s.pid {
		if err := s.applyLogSync(sync); err != nil {
			return err
		}
	}
	if err := s.storage.SetAcceptedRound(s.ls.NLeader); err != nil {
		return fmt.Errorf("write accepted round: %w", err)
	}
	acc, err := s.AcceptedIdx()
	if err != nil {
		return err
	}
	if err := s.updateDecided(s.ls.MaxDecidedIdx(), acc); err != nil {
		return err
	}

	s.phase = PhaseAccept
	s.ls.SetAcceptedIdx(s.pid, acc)
	s.ls.ResetLatestAcceptMeta()
	s.lg.Info("became leader",
		zap.Uint64("pid", s.pid),
		zap.Stringer("ballot", s.ls.NLeader),
		zap.Stringer("synced_from", maxMeta),
		zap.Uint64("accepted_idx", acc),
	)
	for _, f := range s.ls.PromisedFollowers() {
		if err := s.sendAcceptSync(f); err != nil {
			return err
		}
	}

	buffered := s.buffer
	s.buffer = nil
	for _, e := range buffered {
		if err := s.Propose(e); err != nil {
			return err
		}
	}
	return s.tryDecide(acc)
}

func (s *Server[T]) sendAcceptSync(to NodeID) error {
	meta := s.ls.PromiseMeta(to)
	maxMeta := s.ls.MaxPromiseMeta()
	var syncFrom uint64
	switch meta.NAccepted {
	case s.ls.NLeader:
		syncFrom = meta.AcceptedIdx
	case maxMeta.NAccepted:
		// the follower may hold entries of that round past what was adopted
		syncFrom = min(maxMeta.AcceptedIdx, meta.AcceptedIdx)
	default:
		syncFrom = meta.DecidedIdx
	}
	sync, err := s.createLogSync(syncFrom)
	if err != nil {
		return err
	}
	dec, err := s.storage.DecidedIdx()
	if err != nil {
		return fmt.Errorf("read decided idx: %w", err)
	}
	s.ls.IncrementSeqNumSession(to)
	s.ls.SetLatestAcceptMeta(to, nil)
	s.send(to, AcceptSync[T]{
		N:          s.ls.NLeader,
		SeqNum:     s.ls.NextSeqNum(to),
		DecidedIdx: dec,
		LogSync:    *sync,
	})
	return nil
}

func (s *Server[T]) handleAcceptSync(m AcceptSync[T], from NodeID) error {
	prom, err := s.storage.Promise()
	if err != nil {
		return fmt.Errorf("read promise: %w", err)
	}
	if prom != m.N || s.phase != PhasePrepare {
		return nil
	}
	s.currentSeqNum = m.SeqNum
	if err := s.applyLogSync(&m.LogSync); err != nil {
		return err
	}
	if err := s.storage.SetAcceptedRound(m.N); err != nil {
		return fmt.Errorf("write accepted round: %w", err)
	}
	acc, err := s.AcceptedIdx()
	if err != nil {
		return err
	}
	if err := s.updateDecided(m.DecidedIdx, acc); err != nil {
		return err
	}
	s.phase = PhaseAccept
	s.send(from, Accepted{N: m.N, AcceptedIdx: acc})

	if len(s.buffer) > 0 {
		s.send(from, ProposalForward[T]{Entries: s.buffer})
		s.buffer = nil
	}
	return nil
}

// checkSeq reports whether a leader message should be applied and starts a
// resync when a preceding message was lost.
func (s *Server[T]) checkSeq(n Ballot, seq SequenceNumber) (bool, error) {
	prom, err := s.storage.Promise()
	if err != nil {
		return false, fmt.Errorf("read promise: %w", err)
	}
	if prom != n || s.phase != PhaseAccept {
		return false, nil
	}
	switch s.currentSeqNum.CheckMsgStatus(seq) {
	case Expected:
		s.currentSeqNum = seq
		return true, nil
	case DroppedPreceding:
		s.lg.Info("accept stream gap", zap.Uint64("pid", s.pid),
			zap.Stringer("expected_after", s.currentSeqNum), zap.Stringer("got", seq))
		s.reconnectToLeader()
	}
	return false, nil
}

func (s *Server[T]) handleAcceptDecide(m AcceptDecide[T], from NodeID) error {
	ok, err := s.checkSeq(m.N, m.SeqNum)
	if !ok || err != nil {
		return err
	}
	acc, err := s.storage.AppendEntries(m.Entries)
	if err != nil {
		return fmt.Errorf("append entries: %w", err)
	}
	meta := AcceptedMetaData[T]{AcceptedIdx: acc, Entries: m.Entries}
	if err := s.updateDecided(m.DecidedIdx, meta.AcceptedIdx); err != nil {
		return err
	}
	if len(meta.Entries) > 0 {
		s.send(from, Accepted{N: m.N, AcceptedIdx: meta.AcceptedIdx})
	}
	return nil
}

func (s *Server[T]) handleAcceptStopSign(m AcceptStopSign, from NodeID) error {
	ok, err := s.checkSeq(m.N, m.SeqNum)
	if !ok || err != nil {
		return err
	}
	if err := s.storage.SetStopSign(&m.StopSign); err != nil {
		return fmt.Errorf("write stopsign: %w", err)
	}
	acc, err := s.AcceptedIdx()
	if err != nil {
		return err
	}
	s.send(from, Accepted{N: m.N, AcceptedIdx: acc})
	return nil
}

func (s *Server[T]) handleDecide(m Decide) error {
	ok, err := s.checkSeq(m.N, m.SeqNum)
	if !ok || err != nil {
		return err
	}
	acc, err := s.AcceptedIdx()
	if err != nil {
		return err
	}
	return s.updateDecided(m.DecidedIdx, acc)
}

// updateDecided raises the decided index to min(idx, acceptedIdx).
func (s *Server[T]) updateDecided(idx, acceptedIdx uint64) error {
	idx = min(idx, acceptedIdx)
	dec, err := s.storage.DecidedIdx()
	if err != nil {
		return fmt.Errorf("read decided idx: %w", err)
	}
	if idx <= dec {
		return nil
	}
	if err := s.storage.SetDecidedIdx(idx); err != nil {
		return fmt.Errorf("write decided idx: %w", err)
	}
	s.lg.Debug("decided", zap.Uint64("pid", s.pid), zap.Uint64("decided_idx", idx))
	return nil
}

func (s *Server[T]) handleAccepted(m Accepted, from NodeID) error {
	if s.ls == nil || m.N != s.ls.NLeader || s.phase != PhaseAccept {
		return nil
	}
	s.ls.SetAcceptedIdx(from, m.AcceptedIdx)
	return s.tryDecide(m.AcceptedIdx)
}

func (s *Server[T]) tryDecide(idx uint64) error {
	dec, err := s.storage.DecidedIdx()
	if err != nil {
		return fmt.Errorf("read decided idx: %w", err)
	}
	if idx <= dec || !s.ls.IsChosen(idx) {
		return nil
	}
	if err := s.storage.SetDecidedIdx(idx); err != nil {
		return fmt.Errorf("write decided idx: %w", err)
	}
	s.lg.Debug("chosen", zap.Uint64("pid", s.pid), zap.Uint64("decided_idx", idx))
	for _, f := range s.ls.PromisedFollowers() {
		s.send(f, Decide{N: s.ls.NLeader, SeqNum: s.ls.NextSeqNum(f), DecidedIdx: idx})
	}
	return nil
}

func (s *Server[T]) handleNotAccepted(m NotAccepted, from NodeID) {
	if s.ls == nil || !m.N.Greater(s.ls.NLeader) {
		return
	}
	s.lg.Info("peer promised higher ballot", zap.Uint64("pid", s.pid),
		zap.Uint64("peer", from), zap.Stringer("ballot", m.N))
	s.ls.LostPromise(from)
}

func (s *Server[T]) handlePrepareReq(from NodeID) error {
	if s.role != Leader || s.ls == nil {
		return nil
	}
	if s.ls.PromiseStateOf(from).Status == PromisedHigher {
		return nil
	}
	s.ls.ResetPromise(from)
	s.sendPrepare(from)
	return nil
}

func (s *Server[T]) handleProposalForward(m ProposalForward[T], from NodeID) {
	for _, e := range m.Entries {
		if err := s.Propose(e); err != nil {
			s.lg.Warn("dropping forwarded proposal", zap.Uint64("pid", s.pid),
				zap.Uint64("from", from), zap.Error(err))
			return
		}
	}
}

func (s *Server[T]) stopped() (bool, error) {
	ss, err := s.storage.StopSign()
	if err != nil {
		return false, fmt.Errorf("read stopsign: %w", err)
	}
	return ss != nil, nil
}

// Propose appends entry to the replicated log. A leader batches it, a
// follower forwards it, and a replica without an active leader buffers it.
func (s *Server[T]) Propose(entry T) error {
	if stopped, err := s.stopped(); err != nil || stopped {
		if err == nil {
			err = ErrStopped
		}
		return err
	}
	switch {
	case s.role == Leader && s.phase == PhaseAccept:
		s.batch = append(s.batch, entry)
		if len(s.batch) >= s.cfg.BatchSize {
			return s.flushBatch()
		}
		return nil
	case s.role == Follower && s.phase == PhaseAccept:
		s.send(s.leader.PID, ProposalForward[T]{Entries: []T{entry}})
		return nil
	}
	if len(s.buffer) >= s.cfg.BufferSize {
		return ErrBufferFull
	}
	s.buffer = append(s.buffer, entry)
	return nil
}

func (s *Server[T]) flushBatch() error {
	entries := s.batch
	s.batch = nil
	s.flushClock.Reset()
	if len(entries) == 0 {
		return nil
	}
	acc, err := s.storage.AppendEntries(entries)
	if err != nil {
		return fmt.Errorf("append entries: %w", err)
	}
	meta := AcceptedMetaData[T]{AcceptedIdx: acc, Entries: entries}
	return s.replicate(meta)
}

func (s *Server[T]) replicate(meta AcceptedMetaData[T]) error {
	s.ls.SetAcceptedIdx(s.pid, meta.AcceptedIdx)
	dec, err := s.storage.DecidedIdx()
	if err != nil {
		return fmt.Errorf("read decided idx: %w", err)
	}
	for _, f := range s.ls.PromisedFollowers() {
		s.send(f, AcceptDecide[T]{
			N:          s.ls.NLeader,
			SeqNum:     s.ls.NextSeqNum(f),
			DecidedIdx: dec,
			Entries:    meta.Entries,
		})
		s.ls.SetLatestAcceptMeta(f, &meta.AcceptedIdx)
	}
	return s.tryDecide(meta.AcceptedIdx)
}

// ProposeStopSign ends this configuration. Only the leader of an active
// accept phase can propose it and no proposal is accepted afterwards.
func (s *Server[T]) ProposeStopSign(ss StopSign) error {
	if s.role != Leader || s.phase != PhaseAccept {
		return ErrNotLeader
	}
	if stopped, err := s.stopped(); err != nil || stopped {
		if err == nil {
			err = ErrStopped
		}
		return err
	}
	if err := s.flushBatch(); err != nil {
		return err
	}
	if err := s.storage.SetStopSign(&ss); err != nil {
		return fmt.Errorf("write stopsign: %w", err)
	}
	acc, err := s.AcceptedIdx()
	if err != nil {
		return err
	}
	s.ls.SetAcceptedIdx(s.pid, acc)
	for _, f := range s.ls.PromisedFollowers() {
		s.send(f, AcceptStopSign{N: s.ls.NLeader, SeqNum: s.ls.NextSeqNum(f), StopSign: ss})
		s.ls.SetLatestAcceptMeta(f, &acc)
	}
	s.lg.Info("proposed stopsign", zap.Uint64("pid", s.pid), zap.Uint32("next_config", ss.NextConfig.ConfigID))
	return s.tryDecide(acc)
}

// Status is a point-in-time view of the replica.
type Status struct {
	PID           NodeID
	Role          Role
	Phase         Phase
	Leader        Ballot
	AcceptedRound Ballot
	AcceptedIdx   uint64
	DecidedIdx    uint64
	CompactedIdx  uint64
	Buffered      int
}

func (s *Server[T]) Status() (Status, error) {
	st := Status{
		PID:      s.pid,
		Role:     s.role,
		Phase:    s.phase,
		Leader:   s.leader,
		Buffered: len(s.buffer),
	}
	var err error
	if st.AcceptedRound, err = s.storage.AcceptedRound(); err != nil {
		return st, err
	}
	if st.AcceptedIdx, err = s.AcceptedIdx(); err != nil {
		return st, err
	}
	if st.DecidedIdx, err = s.storage.DecidedIdx(); err != nil {
		return st, err
	}
	if st.CompactedIdx, err = s.storage.CompactedIdx(); err != nil {
		return st, err
	}
	return st, nil
}
