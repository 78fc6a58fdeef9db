package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/virajbhartiya/seqpaxos/pkg/control"
	"github.com/virajbhartiya/seqpaxos/pkg/fsm"
	"github.com/virajbhartiya/seqpaxos/pkg/paxos"
	"github.com/virajbhartiya/seqpaxos/pkg/storage"
	"github.com/virajbhartiya/seqpaxos/pkg/transport"
)

// parsePeers reads "2=host:port,3=host:port" into a peer address map.
func parsePeers(s string) (map[uint64]string, error) {
	peers := make(map[uint64]string)
	if s == "" {
		return peers, nil
	}
	for _, p := range strings.Split(s, ",") {
		id, addr, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok {
			return nil, fmt.Errorf("peer %q: want id=address", p)
		}
		pid, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", p, err)
		}
		peers[pid] = addr
	}
	return peers, nil
}

func main() {
	var (
		id            = flag.Uint64("id", 0, "Node ID")
		dataDir       = flag.String("data-dir", "", "Data directory")
		peers         = flag.String("peers", "", "Comma-separated list of id=address peers")
		address       = flag.String("address", ":8080", "RPC address")
		tick          = flag.Duration("tick", paxos.DefaultTickInterval, "Logical clock tick")
		batch         = flag.Int("batch", paxos.DefaultBatchSize, "Proposals per accepted batch")
		flexibleRead  = flag.Int("flexible-read", 0, "Read quorum size (0 for majority)")
		flexibleWrite = flag.Int("flexible-write", 0, "Write quorum size (0 for majority)")
		leader        = flag.Bool("campaign", false, "Campaign for leadership on startup")
	)
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	if *id == 0 {
		lg.Fatal("-id is required")
	}
	if *dataDir == "" {
		lg.Fatal("-data-dir is required")
	}
	peerAddrs, err := parsePeers(*peers)
	if err != nil {
		lg.Fatal("invalid -peers", zap.Error(err))
	}

	nodes := []paxos.NodeID{*id}
	for pid := range peerAddrs {
		nodes = append(nodes, pid)
	}
	slices.Sort(nodes)

	cfg := paxos.DefaultConfig(*id, nodes)
	cfg.ConfigID = 1
	cfg.BatchSize = *batch
	cfg.Logger = lg
	if *flexibleRead > 0 || *flexibleWrite > 0 {
		cfg.FlexibleQuorum = &paxos.FlexibleQuorum{ReadQuorumSize: *flexibleRead, WriteQuorumSize: *flexibleWrite}
	}

	paxos.RegisterGob[[]byte]()

	store, err := storage.OpenBoltStorage[[]byte](*dataDir)
	if err != nil {
		lg.Fatal("failed to open storage", zap.String("data_dir", *dataDir), zap.Error(err))
	}

	rpcTransport := transport.NewRPCTransport(*id, *address, peerAddrs, lg)

	applyCh := make(chan paxos.ApplyMsg[[]byte], 100)
	node, err := paxos.NewNode(cfg, store, rpcTransport, applyCh, *tick)
	if err != nil {
		lg.Fatal("failed to create node", zap.Error(err))
	}

	applier := control.NewApplier(fsm.NewKVStore(), lg)
	if err := rpcTransport.RegisterName(control.ServiceName, control.NewService(node, applier)); err != nil {
		lg.Fatal("failed to register control service", zap.Error(err))
	}
	if err := rpcTransport.Start(); err != nil {
		lg.Fatal("failed to start transport", zap.String("address", *address), zap.Error(err))
	}

	stopApply := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		applier.Run(applyCh, stopApply)
	}()

	node.Start()
	lg.Info("paxos node started",
		zap.Uint64("id", *id),
		zap.String("address", *address),
		zap.Uint64s("nodes", nodes),
	)
	if *leader {
		if b, err := node.Campaign(); err != nil {
			lg.Warn("campaign failed", zap.Error(err))
		} else {
			lg.Info("campaigning", zap.Stringer("ballot", b))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	lg.Info("shutting down")
	node.Stop()
	rpcTransport.Close()
	close(stopApply)

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		lg.Warn("apply goroutine did not exit in time, continuing")
	}

	if err := store.Close(); err != nil {
		lg.Error("failed to close storage", zap.Error(err))
	}
	lg.Info("shutdown complete")
}
