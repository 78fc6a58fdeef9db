package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/virajbhartiya/seqpaxos/pkg/control"
	"github.com/virajbhartiya/seqpaxos/pkg/fsm"
)

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	var (
		address = flag.String("address", "localhost:8080", "RPC address")
		command = flag.String("command", "", "Command: state, campaign, set, delete, get, snapshot")
		key     = flag.String("key", "", "Key for set, delete and get")
		value   = flag.String("value", "", "Value for set")
	)
	flag.Parse()

	if *command == "" {
		fail("-command is required")
	}

	client, err := control.Dial(*address)
	if err != nil {
		fail("connecting to server: %v", err)
	}
	defer client.Close()

	switch *command {
	case "state":
		state, err := client.State()
		if err != nil {
			fail("%v", err)
		}
		out, _ := json.MarshalIndent(state, "", "  ")
		fmt.Println(string(out))
	case "campaign":
		b, err := client.Campaign()
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("Campaigning with ballot %s\n", b)
	case "set", "delete":
		if *key == "" {
			fail("-key is required for %s", *command)
		}
		op := fsm.OpSet
		if *command == "delete" {
			op = fsm.OpDelete
		}
		if err := client.Propose(fsm.Command{Op: op, Key: *key, Value: *value}); err != nil {
			fail("%v", err)
		}
		fmt.Println("Proposed")
	case "get":
		if *key == "" {
			fail("-key is required for get")
		}
		v, ok, err := client.Get(*key)
		if err != nil {
			fail("%v", err)
		}
		if !ok {
			fmt.Println("(not found)")
			return
		}
		fmt.Println(v)
	case "snapshot":
		idx, err := client.Snapshot()
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("Snapshot taken at index %d\n", idx)
	default:
		fail("unknown command: %s", *command)
	}
}
