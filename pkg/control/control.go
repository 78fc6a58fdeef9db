// Package control is the client-facing RPC surface of a paxosd replica.
package control

import (
	"errors"
	"net/rpc"

	"github.com/virajbhartiya/seqpaxos/pkg/fsm"
	"github.com/virajbhartiya/seqpaxos/pkg/paxos"
)

const ServiceName = "Control"

type ProposeArgs struct {
	Command fsm.Command
}

type ProposeReply struct {
	OK bool
	// Err carries a proposal rejection such as "not the leader" or a stop
	// sign; transport failures are returned as the call's error.
	Err string
}

type GetArgs struct {
	Key string
}

type GetReply struct {
	Value string
	Found bool
}

type StateReply struct {
	PID           uint64
	Role          string
	Phase         string
	Leader        paxos.Ballot
	AcceptedRound paxos.Ballot
	AcceptedIdx   uint64
	DecidedIdx    uint64
	CompactedIdx  uint64
	Buffered      int
	Applied       uint64
}

type CampaignReply struct {
	Ballot paxos.Ballot
}

type SnapshotReply struct {
	Idx uint64
}

// Service serves Control.* calls against one node and its state machine.
type Service struct {
	node *paxos.Node[[]byte]
	app  *Applier
}

func NewService(node *paxos.Node[[]byte], app *Applier) *Service {
	return &Service{node: node, app: app}
}

func (s *Service) Propose(args ProposeArgs, reply *ProposeReply) error {
	data, err := fsm.EncodeCommand(args.Command)
	if err != nil {
		return err
	}
	if err := s.node.Propose(data); err != nil {
		reply.Err = err.Error()
		return nil
	}
	reply.OK = true
	return nil
}

func (s *Service) Get(args GetArgs, reply *GetReply) error {
	reply.Value, reply.Found = s.app.kv.Get(args.Key)
	return nil
}

func (s *Service) State(_ struct{}, reply *StateReply) error {
	st, err := s.node.Status()
	if err != nil {
		return err
	}
	*reply = StateReply{
		PID:           st.PID,
		Role:          st.Role.String(),
		Phase:         st.Phase.String(),
		Leader:        st.Leader,
		AcceptedRound: st.AcceptedRound,
		AcceptedIdx:   st.AcceptedIdx,
		DecidedIdx:    st.DecidedIdx,
		CompactedIdx:  st.CompactedIdx,
		Buffered:      st.Buffered,
		Applied:       s.app.Applied(),
	}
	return nil
}

func (s *Service) Campaign(_ struct{}, reply *CampaignReply) error {
	b, err := s.node.Campaign()
	if err != nil {
		return err
	}
	reply.Ballot = b
	return nil
}

// Snapshot compacts every applied entry into a snapshot of the state
// machine.
func (s *Service) Snapshot(_ struct{}, reply *SnapshotReply) error {
	data, idx, err := s.app.Snapshot()
	if err != nil {
		return err
	}
	if err := s.node.Snapshot(idx, paxos.SnapshotType{Complete: true, Data: data}); err != nil {
		return err
	}
	reply.Idx = idx
	return nil
}

// Client is the paxosctl side of Service.
type Client struct {
	c *rpc.Client
}

func Dial(address string) (*Client, error) {
	c, err := rpc.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Client{c: c}, nil
}

func (c *Client) Close() error { return c.c.Close() }

func (c *Client) Propose(cmd fsm.Command) error {
	var reply ProposeReply
	if err := c.c.Call(ServiceName+".Propose", ProposeArgs{Command: cmd}, &reply); err != nil {
		return err
	}
	if !reply.OK {
		return errors.New(reply.Err)
	}
	return nil
}

func (c *Client) Get(key string) (string, bool, error) {
	var reply GetReply
	err := c.c.Call(ServiceName+".Get", GetArgs{Key: key}, &reply)
	return reply.Value, reply.Found, err
}

func (c *Client) State() (StateReply, error) {
	var reply StateReply
	err := c.c.Call(ServiceName+".State", struct{}{}, &reply)
	return reply, err
}

func (c *Client) Campaign() (paxos.Ballot, error) {
	var reply CampaignReply
	err := c.c.Call(ServiceName+".Campaign", struct{}{}, &reply)
	return reply.Ballot, err
}

func (c *Client) Snapshot() (uint64, error) {
	var reply SnapshotReply
	err := c.c.Call(ServiceName+".Snapshot", struct{}{}, &reply)
	return reply.Idx, err
}
