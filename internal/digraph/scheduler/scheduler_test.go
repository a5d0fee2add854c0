package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func chainGraph(nodes ...Node) DependencyGraph {
	deps := make(DependencyGraph, len(nodes))
	for i, n := range nodes {
		if i == 0 {
			deps[n] = nil
			continue
		}
		deps[n] = []Node{nodes[i-1]}
	}
	return deps
}

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	sc, err := New(cfg)
	require.NoError(t, err)
	return sc
}

func collectSteps(t *testing.T, sc *Scheduler, term map[TimeScale]Condition) []NodeSet {
	t.Helper()
	ctx := context.Background()
	run, err := sc.Run(ctx, term)
	require.NoError(t, err)

	var steps []NodeSet
	for i := 0; i < 1000; i++ {
		set, ok := run.Next(ctx)
		if !ok {
			break
		}
		steps = append(steps, set)
	}
	require.NoError(t, run.Err())
	require.True(t, run.Done(), "trial did not terminate within 1000 steps")
	return steps
}

func TestLinearChainEveryNCalls(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A", "B", "C"},
		Dependencies: chainGraph("A", "B", "C"),
	})
	sc.AddCondition("B", EveryNCalls("A", 2))
	sc.AddCondition("C", EveryNCalls("B", 3))

	steps := collectSteps(t, sc, nil)

	want := []NodeSet{
		NewNodeSet("A"), NewNodeSet("A"), NewNodeSet("B"),
		NewNodeSet("A"), NewNodeSet("A"), NewNodeSet("B"),
		NewNodeSet("A"), NewNodeSet("A"), NewNodeSet("B"),
		NewNodeSet("C"),
	}
	require.Equal(t, want, steps)
}

func TestAlternatePhasing(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A", "B"},
		Dependencies: chainGraph("A", "B"),
	})
	sc.AddConditionSet(map[Node]Condition{
		"A": Any(AtPass(0), EveryNCalls("B", 2)),
		"B": Any(EveryNCalls("A", 1), EveryNCalls("B", 1)),
	})

	steps := collectSteps(t, sc, map[TimeScale]Condition{
		ScaleTrial: AfterNCalls("B", 4, ScaleTrial),
	})

	want := []NodeSet{
		NewNodeSet("A"), NewNodeSet("B"), NewNodeSet("B"),
		NewNodeSet("A"), NewNodeSet("B"), NewNodeSet("B"),
	}
	require.Equal(t, want, steps)
}

func TestBranchJoinPhasing(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes: []Node{"A", "B", "C"},
		Dependencies: DependencyGraph{
			"C": {"A", "B"},
		},
	})
	sc.AddConditionSet(map[Node]Condition{
		"A": EveryNPasses(1),
		"B": EveryNCalls("A", 2),
		"C": Any(AfterNCalls("A", 3, ScaleTrial), AfterNCalls("B", 3, ScaleTrial)),
	})

	steps := collectSteps(t, sc, map[TimeScale]Condition{
		ScaleTrial: AfterNCalls("C", 4, ScaleTrial),
	})

	want := []NodeSet{
		NewNodeSet("A"),
		NewNodeSet("A", "B"),
		NewNodeSet("A"),
		NewNodeSet("C"),
		NewNodeSet("A", "B"),
		NewNodeSet("C"),
		NewNodeSet("A"),
		NewNodeSet("C"),
		NewNodeSet("A", "B"),
		NewNodeSet("C"),
	}
	require.Equal(t, want, steps)
}

func TestDefaultConditionsRunEveryNodeOnce(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A", "B", "C"},
		Dependencies: chainGraph("A", "B", "C"),
	})

	steps := collectSteps(t, sc, nil)

	want := []NodeSet{NewNodeSet("A"), NewNodeSet("B"), NewNodeSet("C")}
	require.Equal(t, want, steps)
}

func TestEveryNCallsFloorLaw(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A", "B"},
		Dependencies: chainGraph("A", "B"),
	})
	sc.AddCondition("B", EveryNCalls("A", 2))

	steps := collectSteps(t, sc, map[TimeScale]Condition{
		ScaleTrial: AfterNCalls("A", 7, ScaleTrial),
	})

	executed := map[Node]int{}
	for _, set := range steps {
		for n := range set {
			executed[n]++
		}
	}
	require.Equal(t, 7, executed["A"])
	require.Equal(t, 3, executed["B"], "B must run floor(7/2) times")

	// Each B execution zeroed its stored credit from A, so only the seventh
	// A execution's credit is left over.
	require.Equal(t, 1, sc.Counters().Useable("A", "B"))
}

func TestStallSafety(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A", "B"},
		Dependencies: DependencyGraph{},
	})
	sc.AddCondition("B", Never())

	steps := collectSteps(t, sc, map[TimeScale]Condition{
		ScaleTrial: AfterNCalls("A", 2, ScaleTrial),
	})

	require.Equal(t, []NodeSet{NewNodeSet("A"), NewNodeSet("A")}, steps)
	require.Zero(t, sc.Counters().Total(ScaleLife, "B"))
}

func TestStalledPassMarker(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A"},
		Dependencies: DependencyGraph{},
	})
	sc.AddCondition("A", AtPass(2))

	steps := collectSteps(t, sc, map[TimeScale]Condition{
		ScaleTrial: AfterNCalls("A", 1, ScaleTrial),
	})

	require.Equal(t, []NodeSet{{}, {}, NewNodeSet("A")}, steps)
}

func TestSelfCreditEveryNCalls(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A"},
		Dependencies: DependencyGraph{},
	})
	// A node's execution grants one unit of credit to every node including
	// itself; self-referential EveryNCalls keeps A running once it started.
	sc.AddCondition("A", Any(AtPass(0), EveryNCalls("A", 1)))

	steps := collectSteps(t, sc, map[TimeScale]Condition{
		ScaleTrial: AfterNCalls("A", 3, ScaleTrial),
	})

	require.Equal(t, []NodeSet{NewNodeSet("A"), NewNodeSet("A"), NewNodeSet("A")}, steps)
	require.Equal(t, 1, sc.Counters().Useable("A", "A"))
}

func TestIntraLayerCascade(t *testing.T) {
	// B and C share a layer; C's condition is only satisfiable by B's
	// execution within the same time step.
	sc := newTestScheduler(t, Config{
		Nodes: []Node{"A", "B", "C"},
		Dependencies: DependencyGraph{
			"B": {"A"},
			"C": {"A"},
		},
	})
	sc.AddCondition("C", EveryNCalls("B", 1))

	steps := collectSteps(t, sc, nil)

	require.Equal(t, []NodeSet{NewNodeSet("A"), NewNodeSet("B", "C")}, steps)
}

func TestHistoryAccumulatesAcrossRuns(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A", "B"},
		Dependencies: chainGraph("A", "B"),
	})

	first := collectSteps(t, sc, nil)
	require.Len(t, first, 2)
	require.Equal(t, 1, sc.Counters().Total(ScaleLife, "A"))

	second := collectSteps(t, sc, nil)
	require.Len(t, second, 2)

	require.Len(t, sc.History(), 4)
	require.Equal(t, 2, sc.Counters().Total(ScaleLife, "A"))
	require.Equal(t, 1, sc.Counters().Total(ScaleTrial, "A"))
}

func TestRunRequiresTrialTermination(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A"},
		Dependencies: DependencyGraph{},
	})

	_, err := sc.Run(context.Background(), map[TimeScale]Condition{
		ScalePass: AllHaveRun(ScalePass),
	})
	require.ErrorIs(t, err, ErrNoTrialTermination)
}

func TestRunRejectsUnknownConditionNode(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A"},
		Dependencies: DependencyGraph{},
	})
	sc.AddCondition("A", EveryNCalls("X", 1))

	_, err := sc.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrSchedulerConfig)
}

func TestRunRejectsUnknownTerminationNode(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A"},
		Dependencies: DependencyGraph{},
	})

	_, err := sc.Run(context.Background(), map[TimeScale]Condition{
		ScaleTrial: AfterNCalls("X", 1, ScaleTrial),
	})
	require.ErrorIs(t, err, ErrSchedulerConfig)
}

func TestNewRequiresGraphOrQueue(t *testing.T) {
	_, err := New(Config{Nodes: []Node{"A"}})
	require.ErrorIs(t, err, ErrSchedulerConfig)

	_, err = New(Config{})
	require.ErrorIs(t, err, ErrSchedulerConfig)
}

func TestNewWithPrecomputedQueue(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes: []Node{"A", "B"},
		Queue: []NodeSet{NewNodeSet("A"), NewNodeSet("B")},
	})

	steps := collectSteps(t, sc, nil)
	require.Equal(t, []NodeSet{NewNodeSet("A"), NewNodeSet("B")}, steps)
}

func TestNewRejectsMalformedQueue(t *testing.T) {
	_, err := New(Config{
		Nodes: []Node{"A", "B"},
		Queue: []NodeSet{NewNodeSet("A"), NewNodeSet("A")},
	})
	require.ErrorIs(t, err, ErrSchedulerConfig)

	_, err = New(Config{
		Nodes: []Node{"A", "B"},
		Queue: []NodeSet{NewNodeSet("A")},
	})
	require.ErrorIs(t, err, ErrSchedulerConfig)

	_, err = New(Config{
		Nodes: []Node{"A"},
		Queue: []NodeSet{NewNodeSet("A", "X")},
	})
	require.ErrorIs(t, err, ErrSchedulerConfig)
}

func TestWhilePredicateErrorPropagates(t *testing.T) {
	sentinel := errors.New("gauge offline")
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A"},
		Dependencies: DependencyGraph{},
	})
	sc.AddCondition("A", While(func(context.Context) (bool, error) {
		return false, sentinel
	}))

	run, err := sc.Run(context.Background(), map[TimeScale]Condition{
		ScaleTrial: AfterNCalls("A", 1, ScaleTrial),
	})
	require.NoError(t, err)

	set, ok := run.Next(context.Background())
	require.Nil(t, set)
	require.False(t, ok)
	require.ErrorIs(t, run.Err(), sentinel)
}

func TestGraphTakesPrecedenceOverQueue(t *testing.T) {
	sc := newTestScheduler(t, Config{
		Nodes:        []Node{"A", "B"},
		Dependencies: chainGraph("A", "B"),
		Queue:        []NodeSet{NewNodeSet("A", "B")},
	})
	require.Len(t, sc.Queue(), 2)
}
