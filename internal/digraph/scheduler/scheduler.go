package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/tickwise/tickwise/internal/logger"
)

var (
	// ErrSchedulerConfig covers fatal configuration problems: constructing a
	// scheduler with neither a dependency graph nor a consideration queue,
	// queues that do not partition the node set, and conditions referencing
	// nodes outside the scheduler's node set.
	ErrSchedulerConfig = errors.New("invalid scheduler configuration")

	// ErrNoTrialTermination is returned when a termination mapping is given
	// without a trial condition. A trial without one would be undecidable.
	ErrNoTrialTermination = errors.New("a trial termination condition is required")
)

// Config carries the inputs fixed for the life of a Scheduler: the node set
// and either a dependency graph or a precomputed consideration queue. When
// both are given the graph takes precedence and the queue is ignored.
type Config struct {
	Nodes        []Node
	Dependencies DependencyGraph
	Queue        []NodeSet
	Conditions   *ConditionSet
}

// Scheduler determines, tick by tick, which nodes of an acyclic dependency
// graph are eligible to execute, subject to dependency order and per-node
// conditions. It holds all mutable state itself so independent instances are
// safe to drive concurrently in one process.
type Scheduler struct {
	nodes       []Node
	queue       []NodeSet
	conditions  *ConditionSet
	counters    *TimeCounters
	history     []NodeSet
	termination map[TimeScale]Condition
}

// New builds a Scheduler from the given config. Node membership is immutable
// afterwards; conditions may still be added between runs.
func New(cfg Config) (*Scheduler, error) {
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("%w: a non-empty node set is required", ErrSchedulerConfig)
	}

	var queue []NodeSet
	switch {
	case cfg.Dependencies != nil:
		var err error
		queue, err = BuildConsiderationQueue(cfg.Nodes, cfg.Dependencies)
		if err != nil {
			return nil, err
		}
	case cfg.Queue != nil:
		if err := validateQueue(cfg.Nodes, cfg.Queue); err != nil {
			return nil, err
		}
		queue = cfg.Queue
	default:
		return nil, fmt.Errorf(
			"%w: either a dependency graph or a consideration queue is required", ErrSchedulerConfig,
		)
	}

	conditions := cfg.Conditions
	if conditions == nil {
		conditions = NewConditionSet()
	}

	return &Scheduler{
		nodes:      cfg.Nodes,
		queue:      queue,
		conditions: conditions,
		counters:   NewTimeCounters(cfg.Nodes),
	}, nil
}

// validateQueue checks that a caller-supplied consideration queue partitions
// the node set: every node in exactly one layer, no strangers.
func validateQueue(nodes []Node, queue []NodeSet) error {
	members := NewNodeSet(nodes...)
	seen := make(NodeSet, len(nodes))
	for i, layer := range queue {
		for node := range layer {
			if !members.Contains(node) {
				return fmt.Errorf("%w: queue layer %d contains unknown node %q", ErrSchedulerConfig, i, node)
			}
			if seen.Contains(node) {
				return fmt.Errorf("%w: node %q appears in more than one queue layer", ErrSchedulerConfig, node)
			}
			seen.Add(node)
		}
	}
	if len(seen) != len(members) {
		for node := range members {
			if !seen.Contains(node) {
				return fmt.Errorf("%w: node %q missing from the consideration queue", ErrSchedulerConfig, node)
			}
		}
	}
	return nil
}

// AddCondition binds a condition to a node, replacing any previous binding.
// Safe between runs, not during one.
func (sc *Scheduler) AddCondition(owner Node, cond Condition) {
	sc.conditions.Add(owner, cond)
}

// AddConditionSet binds every condition in the mapping.
func (sc *Scheduler) AddConditionSet(conds map[Node]Condition) {
	sc.conditions.AddSet(conds)
}

// Nodes returns the scheduler's node set.
func (sc *Scheduler) Nodes() []Node { return sc.nodes }

// Queue returns the consideration queue derived at construction.
func (sc *Scheduler) Queue() []NodeSet { return sc.queue }

// Counters exposes the scheduler's clocks and execution counts.
func (sc *Scheduler) Counters() *TimeCounters { return sc.counters }

// History returns every time step emitted so far, across all runs.
func (sc *Scheduler) History() []NodeSet { return sc.history }

func (sc *Scheduler) state() *State {
	return &State{Nodes: sc.nodes, Counters: sc.counters, Conditions: sc.conditions}
}

// Run validates the scheduler's configuration, resets trial-scope counters,
// and returns a cursor producing one execution set per time step of a single
// trial. Termination maps scales to the condition ending their current tick;
// nil maps default every scale to AllHaveRun, while a partial map must bind
// the trial scale explicitly.
func (sc *Scheduler) Run(ctx context.Context, termination map[TimeScale]Condition) (*Run, error) {
	if err := sc.validate(ctx, termination); err != nil {
		return nil, err
	}

	sc.counters.ResetUseable()
	sc.counters.ResetCount(ScaleTrial)
	sc.counters.ResetTime(ScaleTrial)

	return &Run{sc: sc, trialTerm: sc.termination[ScaleTrial]}, nil
}

func (sc *Scheduler) validate(ctx context.Context, termination map[TimeScale]Condition) error {
	var defaulted []Node
	for _, node := range sc.nodes {
		if !sc.conditions.Contains(node) {
			sc.conditions.Add(node, Always())
			defaulted = append(defaulted, node)
		}
	}
	if len(defaulted) > 0 {
		logger.Warn(ctx, "Nodes without conditions default to Always", "nodes", NewNodeSet(defaulted...).String())
	}

	if termination == nil {
		logger.Warn(ctx, "No termination conditions given; all scales default to AllHaveRun")
		termination = make(map[TimeScale]Condition, len(TimeScales))
		for _, ts := range TimeScales {
			termination[ts] = AllHaveRun(ts)
		}
	} else {
		resolved := make(map[TimeScale]Condition, len(TimeScales))
		for _, ts := range TimeScales {
			cond := termination[ts]
			if cond == nil {
				if ts == ScaleTrial {
					return ErrNoTrialTermination
				}
				cond = AllHaveRun(ts)
			}
			resolved[ts] = cond
		}
		termination = resolved
	}
	sc.termination = termination

	members := NewNodeSet(sc.nodes...)
	var refErr error
	sc.conditions.Each(func(owner Node, cond Condition) {
		if refErr != nil {
			return
		}
		for _, ref := range cond.References() {
			if !members.Contains(ref) {
				refErr = fmt.Errorf(
					"%w: condition of %q references unknown node %q", ErrSchedulerConfig, owner, ref,
				)
				return
			}
		}
	})
	if refErr != nil {
		return refErr
	}
	for _, ts := range TimeScales {
		for _, ref := range termination[ts].References() {
			if !members.Contains(ref) {
				return fmt.Errorf(
					"%w: %s termination condition references unknown node %q", ErrSchedulerConfig, ts, ref,
				)
			}
		}
	}

	return nil
}

// Run is a lazy cursor over the time steps of a single trial. Each Next call
// advances the schedule exactly one time step, so condition evaluation for
// later steps observes whatever the caller did with the previous set.
// Abandoning the cursor carries no cleanup obligation.
type Run struct {
	sc        *Scheduler
	trialTerm Condition

	inPass      bool
	passChanged bool
	layerIdx    int
	done        bool
	err         error
}

// Next produces the next time step's execution set. It returns false once the
// trial termination condition fires or an evaluation error occurs; empty sets
// returned with true are stalled-pass markers, never ordinary steps.
func (r *Run) Next(ctx context.Context) (NodeSet, bool) {
	if r.done || r.err != nil {
		return nil, false
	}
	st := r.sc.state()

	for {
		if !r.inPass {
			if r.checkTrialTermination(ctx, st) {
				return nil, false
			}
			r.sc.counters.ResetCount(ScalePass)
			r.sc.counters.ResetTime(ScalePass)
			r.passChanged = false
			r.layerIdx = 0
			r.inPass = true
		}

		for r.layerIdx < len(r.sc.queue) {
			if r.checkTrialTermination(ctx, st) {
				return nil, false
			}

			layer := r.sc.queue[r.layerIdx]
			r.layerIdx++

			set, err := r.expandLayer(ctx, st, layer)
			if err != nil {
				r.err = err
				return nil, false
			}
			if len(set) > 0 {
				return r.emit(ctx, set), true
			}
		}

		r.inPass = false
		stalled := !r.passChanged
		r.sc.counters.IncrementTime(ScalePass)
		if stalled {
			// Surface a silent pass as data so the caller can react.
			logger.Debug(ctx, "Pass produced no executions", "pass", r.sc.counters.Time(ScaleTrial, ScalePass))
			return r.emit(ctx, NodeSet{}), true
		}
	}
}

// expandLayer repeatedly scans a consideration set until a full scan admits
// nothing new. The fixed point lets one node's execution satisfy another
// node's condition within the same layer and time step, while the
// already-added check caps each node at one execution per time step.
func (r *Run) expandLayer(ctx context.Context, st *State, layer NodeSet) (NodeSet, error) {
	set := make(NodeSet, len(layer))
	for {
		changed := false
		for _, node := range layer.Sorted() {
			if set.Contains(node) {
				continue
			}
			ok, err := r.sc.conditions.IsSatisfied(ctx, st, node)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			logger.Debug(ctx, "Node admitted to time step", "node", node)
			set.Add(node)
			r.sc.counters.RecordExecution(node)
			changed = true
			r.passChanged = true
		}
		if !changed {
			return set, nil
		}
	}
}

func (r *Run) emit(ctx context.Context, set NodeSet) NodeSet {
	r.sc.history = append(r.sc.history, set)
	r.sc.counters.IncrementTime(ScaleTimeStep)
	logger.Debug(ctx, "Time step emitted", "set", set.String(), "step", len(r.sc.history))
	return set
}

func (r *Run) checkTrialTermination(ctx context.Context, st *State) bool {
	ok, err := r.trialTerm.IsSatisfied(ctx, st, "")
	if err != nil {
		r.err = err
		return true
	}
	if ok {
		r.sc.counters.IncrementTime(ScaleTrial)
		r.done = true
	}
	return ok
}

// Err returns the first error encountered while producing time steps.
// Predicate errors from While conditions surface here unmodified.
func (r *Run) Err() error { return r.err }

// Done reports whether the trial has terminated.
func (r *Run) Done() bool { return r.done }

// History returns the full accumulated execution history, one set per emitted
// time step, including steps from earlier runs of the same scheduler.
func (r *Run) History() []NodeSet { return r.sc.history }
