package scheduler

// TimeScale is one of the nested logical clocks the scheduler advances.
// Scales are ordered from finest to coarsest; a tick of a coarser scale
// resets the counts of everything beneath it.
type TimeScale int

const (
	ScaleTimeStep TimeScale = iota
	ScalePass
	ScaleTrial
	ScaleRun
	ScaleLife
)

// TimeScales lists every scale in order from finest to coarsest.
var TimeScales = []TimeScale{ScaleTimeStep, ScalePass, ScaleTrial, ScaleRun, ScaleLife}

func (ts TimeScale) String() string {
	switch ts {
	case ScaleTimeStep:
		return "time_step"
	case ScalePass:
		return "pass"
	case ScaleTrial:
		return "trial"
	case ScaleRun:
		return "run"
	case ScaleLife:
		return "life"
	default:
		return "unknown"
	}
}

// ParseTimeScale parses a scale name as it appears in schedule definitions.
func ParseTimeScale(s string) (TimeScale, bool) {
	switch s {
	case "time_step", "timeStep":
		return ScaleTimeStep, true
	case "pass":
		return ScalePass, true
	case "trial":
		return ScaleTrial, true
	case "run":
		return ScaleRun, true
	case "life":
		return ScaleLife, true
	default:
		return ScaleTimeStep, false
	}
}

// TimeCounters tracks the nested clocks and the per-node execution counts
// that conditions query. It is pure bookkeeping with no failure modes; all
// counters are defined for the full node set from construction.
type TimeCounters struct {
	nodes []Node

	// times[outer][inner] is the number of inner ticks elapsed within the
	// current outer tick.
	times map[TimeScale]map[TimeScale]int

	// countsTotal[scale][node] is the number of times node has been selected
	// for execution within the current tick of scale.
	countsTotal map[TimeScale]map[Node]int

	// countsUseable[producer][consumer] is the number of unspent executions
	// of producer available for conditions owned by consumer.
	countsUseable map[Node]map[Node]int
}

// NewTimeCounters returns counters zeroed for the given node set.
func NewTimeCounters(nodes []Node) *TimeCounters {
	c := &TimeCounters{
		nodes:       nodes,
		times:       make(map[TimeScale]map[TimeScale]int, len(TimeScales)),
		countsTotal: make(map[TimeScale]map[Node]int, len(TimeScales)),
	}
	for _, outer := range TimeScales {
		c.times[outer] = make(map[TimeScale]int, len(TimeScales))
		c.countsTotal[outer] = make(map[Node]int, len(nodes))
	}
	c.ResetUseable()
	return c
}

// Time returns how many inner ticks have elapsed in the current outer tick.
func (c *TimeCounters) Time(outer, inner TimeScale) int {
	return c.times[outer][inner]
}

// Total returns the cumulative executions of node within the current tick of
// scale.
func (c *TimeCounters) Total(scale TimeScale, node Node) int {
	return c.countsTotal[scale][node]
}

// Useable returns the unspent execution credit of producer available to
// consumer.
func (c *TimeCounters) Useable(producer, consumer Node) int {
	return c.countsUseable[producer][consumer]
}

// IncrementTime advances the given scale by one tick on every clock.
func (c *TimeCounters) IncrementTime(scale TimeScale) {
	for _, ts := range TimeScales {
		c.times[ts][scale]++
	}
}

// ResetTime zeroes all of the given scale's sub-counts. Called when the scale
// itself ticks over.
func (c *TimeCounters) ResetTime(scale TimeScale) {
	for _, ts := range TimeScales {
		c.times[scale][ts] = 0
	}
}

// ResetCount zeroes the execution totals tracked within the given scale.
func (c *TimeCounters) ResetCount(scale TimeScale) {
	for node := range c.countsTotal[scale] {
		c.countsTotal[scale][node] = 0
	}
}

// ResetUseable zeroes the useable credit for every node pair.
func (c *TimeCounters) ResetUseable() {
	c.countsUseable = make(map[Node]map[Node]int, len(c.nodes))
	for _, producer := range c.nodes {
		row := make(map[Node]int, len(c.nodes))
		for _, consumer := range c.nodes {
			row[consumer] = 0
		}
		c.countsUseable[producer] = row
	}
}

// RecordExecution books one execution of node: its totals advance on every
// scale, its incoming credit is consumed, and one unit of credit from it
// becomes useable by every node. The consume-then-grant order means a node
// ends its own execution holding one unit of self credit, which makes
// self-referential EveryNCalls conditions satisfiable.
func (c *TimeCounters) RecordExecution(node Node) {
	for _, ts := range TimeScales {
		c.countsTotal[ts][node]++
	}
	for _, producer := range c.nodes {
		c.countsUseable[producer][node] = 0
	}
	for _, consumer := range c.nodes {
		c.countsUseable[node][consumer]++
	}
}
