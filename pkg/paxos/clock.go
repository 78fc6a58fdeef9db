package paxos

// LogicalClock fires once every timeout ticks. It is advanced by the
// replica's Tick so periodic work needs no timer goroutines.
type LogicalClock struct {
	time    uint64
	timeout uint64
}

func NewLogicalClock(timeout uint64) *LogicalClock {
	return &LogicalClock{timeout: timeout}
}

func (c *LogicalClock) TickAndCheckTimeout() bool {
	c.time++
	if c.time == c.timeout {
		c.time = 0
		return true
	}
	return false
}

// Reset restarts the countdown.
func (c *LogicalClock) Reset() { c.time = 0 }
