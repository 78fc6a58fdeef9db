package transport

import (
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	sync "github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

const serviceName = "Paxos"

// RPCTransport sends envelopes over net/rpc with gob encoding. Payload types
// must be registered with gob (see paxos.RegisterGob).
type RPCTransport struct {
	mu       sync.RWMutex
	id       uint64
	address  string
	peers    map[uint64]string
	server   *rpc.Server
	listener net.Listener
	senders  map[uint64]*peerSender
	incoming chan Envelope
	stopCh   chan struct{}
	lg       *zap.Logger
}

type peerClient struct {
	client  *rpc.Client
	session uuid.UUID
}

type peerSender struct {
	to    uint64
	addr  string
	queue chan interface{}
	done  chan struct{}
}

const (
	sendQueueSize = 1024
	dialTimeout   = time.Second
	callTimeout   = time.Second
)

var _ Transport = (*RPCTransport)(nil)

// PaxosRPC is the receiving side of RPCTransport.
type PaxosRPC struct {
	t *RPCTransport
}

func (r *PaxosRPC) Deliver(env Envelope, ack *bool) error {
	select {
	case r.t.incoming <- env:
		*ack = true
	case <-r.t.stopCh:
		return ErrClosed
	default:
		*ack = false
	}
	return nil
}

func NewRPCTransport(id uint64, address string, peers map[uint64]string, lg *zap.Logger) *RPCTransport {
	if lg == nil {
		lg = zap.NewNop()
	}
	t := &RPCTransport{
		id:       id,
		address:  address,
		peers:    peers,
		server:   rpc.NewServer(),
		senders:  make(map[uint64]*peerSender),
		incoming: make(chan Envelope, inboxSize),
		stopCh:   make(chan struct{}),
		lg:       lg,
	}
	t.server.RegisterName(serviceName, &PaxosRPC{t: t})
	return t
}

// RegisterName exposes an additional net/rpc service on the same listener.
func (t *RPCTransport) RegisterName(name string, rcvr interface{}) error {
	return t.server.RegisterName(name, rcvr)
}

func (t *RPCTransport) Start() error {
	listener, err := net.Listen("tcp", t.address)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()
	go func() {
		for {
			select {
			case <-t.stopCh:
				return
			default:
			}

			if tcpListener, ok := listener.(*net.TCPListener); ok {
				tcpListener.SetDeadline(time.Now().Add(100 * time.Millisecond))
			}

			conn, err := listener.Accept()
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					continue
				}
				t.lg.Warn("accept failed", zap.Error(err))
				return
			}
			go t.server.ServeConn(conn)
		}
	}()
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (t *RPCTransport) Addr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Send queues payload for the peer's sender goroutine and never blocks. A
// full queue drops the message.
func (t *RPCTransport) Send(to uint64, payload interface{}) error {
	ps, err := t.sender(to)
	if err != nil {
		return err
	}
	select {
	case ps.queue <- payload:
		return nil
	default:
		return ErrDropped
	}
}

func (t *RPCTransport) sender(to uint64) (*peerSender, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.stopCh:
		return nil, ErrClosed
	default:
	}
	if ps, ok := t.senders[to]; ok {
		return ps, nil
	}
	addr, ok := t.peers[to]
	if !ok {
		return nil, ErrUnknownNode
	}
	ps := &peerSender{
		to:    to,
		addr:  addr,
		queue: make(chan interface{}, sendQueueSize),
		done:  make(chan struct{}),
	}
	t.senders[to] = ps
	go t.runSender(ps)
	return ps, nil
}

// runSender delivers one peer's queue in order. A failed dial or call tears
// the connection down and the next message dials again under a new session;
// messages queued while the peer is unreachable are dropped until
// dialTimeout has passed.
func (t *RPCTransport) runSender(ps *peerSender) {
	defer close(ps.done)
	var (
		pc      *peerClient
		retryAt time.Time
	)
	closeClient := func() {
		if pc != nil {
			pc.client.Close()
			pc = nil
		}
	}
	defer closeClient()

	for {
		var payload interface{}
		select {
		case payload = <-ps.queue:
		case <-t.stopCh:
			return
		}

		if pc == nil {
			if time.Now().Before(retryAt) {
				continue
			}
			conn, err := net.DialTimeout("tcp", ps.addr, dialTimeout)
			if err != nil {
				t.lg.Debug("dial failed", zap.Uint64("peer", ps.to), zap.String("address", ps.addr), zap.Error(err))
				retryAt = time.Now().Add(dialTimeout)
				continue
			}
			pc = &peerClient{client: rpc.NewClient(conn), session: uuid.New()}
			t.lg.Debug("connected to peer", zap.Uint64("peer", ps.to), zap.String("address", ps.addr), zap.Stringer("session", pc.session))
		}

		env := Envelope{From: t.id, To: ps.to, Session: pc.session, Payload: payload}
		call := pc.client.Go(serviceName+".Deliver", env, new(bool), make(chan *rpc.Call, 1))
		timer := time.NewTimer(callTimeout)
		select {
		case res := <-call.Done:
			if res.Error != nil {
				t.lg.Debug("send failed", zap.Uint64("peer", ps.to), zap.Error(res.Error))
				closeClient()
			}
		case <-timer.C:
			t.lg.Debug("send timed out", zap.Uint64("peer", ps.to))
			closeClient()
		case <-t.stopCh:
			timer.Stop()
			return
		}
		timer.Stop()
	}
}

func (t *RPCTransport) Incoming() <-chan Envelope {
	return t.incoming
}

func (t *RPCTransport) Close() error {
	t.mu.Lock()
	select {
	case <-t.stopCh:
		t.mu.Unlock()
		return nil
	default:
	}
	close(t.stopCh)

	if t.listener != nil {
		t.listener.Close()
	}
	senders := t.senders
	t.senders = make(map[uint64]*peerSender)
	t.mu.Unlock()

	for _, ps := range senders {
		<-ps.done
	}
	return nil
}
