package scheduler

import (
	"context"
	"fmt"
	"sync"
)

// Condition gates a node's eligibility to execute in a time step. Conditions
// are evaluated against the scheduler's State; evaluation must not mutate
// counters, that only happens when the scheduler actually selects a node.
//
// The owner argument is the node the condition is bound to. Termination
// conditions are evaluated with an empty owner.
type Condition interface {
	IsSatisfied(ctx context.Context, st *State, owner Node) (bool, error)

	// References lists the nodes the condition reads counters for, so the
	// scheduler can reject conditions referencing nodes it does not manage.
	References() []Node
}

// PredicateFunc is an externally supplied predicate for While-style
// conditions. Errors returned from it propagate unmodified to the caller of
// the run.
type PredicateFunc func(ctx context.Context) (bool, error)

// State is the scheduler state a condition evaluates against.
type State struct {
	Nodes      []Node
	Counters   *TimeCounters
	Conditions *ConditionSet
}

type alwaysCondition struct{}

// Always is satisfied every time it is considered.
func Always() Condition { return alwaysCondition{} }

func (alwaysCondition) IsSatisfied(context.Context, *State, Node) (bool, error) { return true, nil }
func (alwaysCondition) References() []Node                                      { return nil }

type neverCondition struct{}

// Never is never satisfied.
func Never() Condition { return neverCondition{} }

func (neverCondition) IsSatisfied(context.Context, *State, Node) (bool, error) { return false, nil }
func (neverCondition) References() []Node                                      { return nil }

type atPassCondition struct{ n int }

// AtPass is satisfied only during pass n of the current trial, counting from
// zero.
func AtPass(n int) Condition { return atPassCondition{n: n} }

func (c atPassCondition) IsSatisfied(_ context.Context, st *State, _ Node) (bool, error) {
	return st.Counters.Time(ScaleTrial, ScalePass) == c.n, nil
}

func (atPassCondition) References() []Node { return nil }

type afterNPassesCondition struct{ n int }

// AfterNPasses is satisfied once n passes of the current trial have elapsed.
func AfterNPasses(n int) Condition { return afterNPassesCondition{n: n} }

func (c afterNPassesCondition) IsSatisfied(_ context.Context, st *State, _ Node) (bool, error) {
	return st.Counters.Time(ScaleTrial, ScalePass) >= c.n, nil
}

func (afterNPassesCondition) References() []Node { return nil }

type everyNPassesCondition struct{ n int }

// EveryNPasses is satisfied on every n-th pass of the current trial,
// starting with the first.
func EveryNPasses(n int) Condition { return everyNPassesCondition{n: n} }

func (c everyNPassesCondition) IsSatisfied(_ context.Context, st *State, _ Node) (bool, error) {
	if c.n <= 0 {
		return false, fmt.Errorf("EveryNPasses requires n > 0, got %d", c.n)
	}
	return st.Counters.Time(ScaleTrial, ScalePass)%c.n == 0, nil
}

func (everyNPassesCondition) References() []Node { return nil }

type everyNCallsCondition struct {
	node Node
	n    int
}

// EveryNCalls is satisfied when the owner holds at least n units of unspent
// execution credit from the given node. Credit is consumed implicitly: the
// owner's own execution zeroes its incoming credit.
func EveryNCalls(node Node, n int) Condition {
	return everyNCallsCondition{node: node, n: n}
}

func (c everyNCallsCondition) IsSatisfied(_ context.Context, st *State, owner Node) (bool, error) {
	return st.Counters.Useable(c.node, owner) >= c.n, nil
}

func (c everyNCallsCondition) References() []Node { return []Node{c.node} }

type afterNCallsCondition struct {
	node  Node
	n     int
	scale TimeScale
}

// AfterNCalls is satisfied once the given node has executed at least n times
// within the current tick of scale.
func AfterNCalls(node Node, n int, scale TimeScale) Condition {
	return afterNCallsCondition{node: node, n: n, scale: scale}
}

func (c afterNCallsCondition) IsSatisfied(_ context.Context, st *State, _ Node) (bool, error) {
	return st.Counters.Total(c.scale, c.node) >= c.n, nil
}

func (c afterNCallsCondition) References() []Node { return []Node{c.node} }

type allHaveRunCondition struct {
	scale TimeScale
	nodes []Node
}

// AllHaveRun is satisfied once every node has executed at least once within
// the current tick of scale. An explicit node list restricts the check to
// those nodes; with none given, the whole node set must have run.
func AllHaveRun(scale TimeScale, nodes ...Node) Condition {
	return allHaveRunCondition{scale: scale, nodes: nodes}
}

func (c allHaveRunCondition) IsSatisfied(_ context.Context, st *State, _ Node) (bool, error) {
	nodes := c.nodes
	if len(nodes) == 0 {
		nodes = st.Nodes
	}
	for _, n := range nodes {
		if st.Counters.Total(c.scale, n) < 1 {
			return false, nil
		}
	}
	return true, nil
}

func (c allHaveRunCondition) References() []Node { return c.nodes }

type whileCondition struct {
	fn     PredicateFunc
	negate bool
}

// While is satisfied while the given predicate returns true. The predicate
// may inspect live external state; it must be cheap and side-effect-free
// from the scheduler's point of view.
func While(fn PredicateFunc) Condition { return whileCondition{fn: fn} }

// WhileNot is satisfied while the given predicate returns false.
func WhileNot(fn PredicateFunc) Condition { return whileCondition{fn: fn, negate: true} }

func (c whileCondition) IsSatisfied(ctx context.Context, _ *State, _ Node) (bool, error) {
	ok, err := c.fn(ctx)
	if err != nil {
		return false, err
	}
	if c.negate {
		return !ok, nil
	}
	return ok, nil
}

func (whileCondition) References() []Node { return nil }

type allCondition struct{ conds []Condition }

// All is satisfied when every sub-condition is satisfied.
func All(conds ...Condition) Condition { return allCondition{conds: conds} }

func (c allCondition) IsSatisfied(ctx context.Context, st *State, owner Node) (bool, error) {
	for _, cond := range c.conds {
		ok, err := cond.IsSatisfied(ctx, st, owner)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (c allCondition) References() []Node { return referencesOf(c.conds) }

type anyCondition struct{ conds []Condition }

// Any is satisfied when at least one sub-condition is satisfied.
func Any(conds ...Condition) Condition { return anyCondition{conds: conds} }

func (c anyCondition) IsSatisfied(ctx context.Context, st *State, owner Node) (bool, error) {
	for _, cond := range c.conds {
		ok, err := cond.IsSatisfied(ctx, st, owner)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (c anyCondition) References() []Node { return referencesOf(c.conds) }

type notCondition struct{ cond Condition }

// Not inverts a condition.
func Not(cond Condition) Condition { return notCondition{cond: cond} }

func (c notCondition) IsSatisfied(ctx context.Context, st *State, owner Node) (bool, error) {
	ok, err := c.cond.IsSatisfied(ctx, st, owner)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (c notCondition) References() []Node { return c.cond.References() }

type nWhileCondition struct {
	cond Condition
	n    int
}

// NWhile is satisfied while the wrapped condition holds and the owner has
// executed fewer than n times in the current trial. It bounds how often a
// condition can admit its owner per trial without any extra bookkeeping of
// its own.
func NWhile(cond Condition, n int) Condition { return nWhileCondition{cond: cond, n: n} }

func (c nWhileCondition) IsSatisfied(ctx context.Context, st *State, owner Node) (bool, error) {
	if st.Counters.Total(ScaleTrial, owner) >= c.n {
		return false, nil
	}
	return c.cond.IsSatisfied(ctx, st, owner)
}

func (c nWhileCondition) References() []Node { return c.cond.References() }

func referencesOf(conds []Condition) []Node {
	var nodes []Node
	for _, c := range conds {
		nodes = append(nodes, c.References()...)
	}
	return nodes
}

// ConditionSet binds nodes to the Condition gating their execution. Nodes
// without an explicit binding default to Always at validation time.
type ConditionSet struct {
	mu         sync.RWMutex
	conditions map[Node]Condition
}

// NewConditionSet returns an empty condition set.
func NewConditionSet() *ConditionSet {
	return &ConditionSet{conditions: make(map[Node]Condition)}
}

// Add binds a condition to its owner, replacing any previous binding.
func (cs *ConditionSet) Add(owner Node, cond Condition) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.conditions[owner] = cond
}

// AddSet binds each condition in the mapping to its owner.
func (cs *ConditionSet) AddSet(conds map[Node]Condition) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for owner, cond := range conds {
		cs.conditions[owner] = cond
	}
}

// Contains reports whether the node has an explicit binding.
func (cs *ConditionSet) Contains(node Node) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, ok := cs.conditions[node]
	return ok
}

// Get returns the condition bound to node, or nil if none is bound.
func (cs *ConditionSet) Get(node Node) Condition {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.conditions[node]
}

// Each calls fn for every binding in the set.
func (cs *ConditionSet) Each(fn func(owner Node, cond Condition)) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for owner, cond := range cs.conditions {
		fn(owner, cond)
	}
}

// IsSatisfied evaluates the condition bound to node against the given state.
func (cs *ConditionSet) IsSatisfied(ctx context.Context, st *State, node Node) (bool, error) {
	cond := cs.Get(node)
	if cond == nil {
		return false, fmt.Errorf("%w: no condition bound to node %q", ErrSchedulerConfig, node)
	}
	return cond.IsSatisfied(ctx, st, node)
}
