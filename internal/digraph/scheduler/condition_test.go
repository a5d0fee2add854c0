package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestState(nodes ...Node) *State {
	return &State{
		Nodes:      nodes,
		Counters:   NewTimeCounters(nodes),
		Conditions: NewConditionSet(),
	}
}

func satisfied(t *testing.T, cond Condition, st *State, owner Node) bool {
	t.Helper()
	ok, err := cond.IsSatisfied(context.Background(), st, owner)
	require.NoError(t, err)
	return ok
}

func TestAlwaysAndNever(t *testing.T) {
	st := newTestState("A")
	require.True(t, satisfied(t, Always(), st, "A"))
	require.False(t, satisfied(t, Never(), st, "A"))
}

func TestAtPass(t *testing.T) {
	st := newTestState("A")
	require.True(t, satisfied(t, AtPass(0), st, "A"))
	require.False(t, satisfied(t, AtPass(1), st, "A"))

	st.Counters.IncrementTime(ScalePass)
	require.False(t, satisfied(t, AtPass(0), st, "A"))
	require.True(t, satisfied(t, AtPass(1), st, "A"))
}

func TestPassConditions(t *testing.T) {
	st := newTestState("A")
	require.True(t, satisfied(t, AfterNPasses(0), st, "A"))
	require.False(t, satisfied(t, AfterNPasses(2), st, "A"))
	require.True(t, satisfied(t, EveryNPasses(2), st, "A"))

	st.Counters.IncrementTime(ScalePass)
	require.False(t, satisfied(t, EveryNPasses(2), st, "A"))

	st.Counters.IncrementTime(ScalePass)
	require.True(t, satisfied(t, AfterNPasses(2), st, "A"))
	require.True(t, satisfied(t, EveryNPasses(2), st, "A"))
}

func TestEveryNPassesRejectsNonPositiveN(t *testing.T) {
	st := newTestState("A")
	_, err := EveryNPasses(0).IsSatisfied(context.Background(), st, "A")
	require.Error(t, err)
}

func TestEveryNCallsReadsUseableCredit(t *testing.T) {
	st := newTestState("A", "B")
	cond := EveryNCalls("A", 2)

	require.False(t, satisfied(t, cond, st, "B"))
	st.Counters.RecordExecution("A")
	require.False(t, satisfied(t, cond, st, "B"))
	st.Counters.RecordExecution("A")
	require.True(t, satisfied(t, cond, st, "B"))

	// B running spends the credit.
	st.Counters.RecordExecution("B")
	require.False(t, satisfied(t, cond, st, "B"))

	require.Equal(t, []Node{"A"}, cond.References())
}

func TestAfterNCallsScopesToScale(t *testing.T) {
	st := newTestState("A")
	st.Counters.RecordExecution("A")
	st.Counters.RecordExecution("A")

	require.True(t, satisfied(t, AfterNCalls("A", 2, ScalePass), st, ""))
	require.True(t, satisfied(t, AfterNCalls("A", 2, ScaleTrial), st, ""))

	st.Counters.ResetCount(ScalePass)
	require.False(t, satisfied(t, AfterNCalls("A", 2, ScalePass), st, ""))
	require.True(t, satisfied(t, AfterNCalls("A", 2, ScaleTrial), st, ""))
}

func TestAllHaveRun(t *testing.T) {
	st := newTestState("A", "B")
	cond := AllHaveRun(ScaleTrial)

	require.False(t, satisfied(t, cond, st, ""))
	st.Counters.RecordExecution("A")
	require.False(t, satisfied(t, cond, st, ""))
	st.Counters.RecordExecution("B")
	require.True(t, satisfied(t, cond, st, ""))
}

func TestAllHaveRunWithExplicitNodes(t *testing.T) {
	st := newTestState("A", "B")
	cond := AllHaveRun(ScaleTrial, "A")

	st.Counters.RecordExecution("A")
	require.True(t, satisfied(t, cond, st, ""))
	require.Equal(t, []Node{"A"}, cond.References())
}

func TestWhileConditions(t *testing.T) {
	st := newTestState("A")
	flag := true
	pred := func(context.Context) (bool, error) { return flag, nil }

	require.True(t, satisfied(t, While(pred), st, "A"))
	require.False(t, satisfied(t, WhileNot(pred), st, "A"))

	flag = false
	require.False(t, satisfied(t, While(pred), st, "A"))
	require.True(t, satisfied(t, WhileNot(pred), st, "A"))
}

func TestCombinators(t *testing.T) {
	st := newTestState("A")

	require.True(t, satisfied(t, All(Always(), Always()), st, "A"))
	require.False(t, satisfied(t, All(Always(), Never()), st, "A"))
	require.True(t, satisfied(t, All(), st, "A"))

	require.True(t, satisfied(t, Any(Never(), Always()), st, "A"))
	require.False(t, satisfied(t, Any(Never(), Never()), st, "A"))
	require.False(t, satisfied(t, Any(), st, "A"))

	require.False(t, satisfied(t, Not(Always()), st, "A"))
	require.True(t, satisfied(t, Not(Never()), st, "A"))
}

func TestCombinatorsCollectReferences(t *testing.T) {
	cond := Any(
		All(EveryNCalls("A", 1), AfterNCalls("B", 2, ScaleTrial)),
		Not(EveryNCalls("C", 3)),
	)
	require.ElementsMatch(t, []Node{"A", "B", "C"}, cond.References())
}

func TestCombinatorErrorPropagation(t *testing.T) {
	st := newTestState("A")
	sentinel := errors.New("probe failed")
	failing := While(func(context.Context) (bool, error) { return false, sentinel })

	for _, cond := range []Condition{
		All(Always(), failing),
		Any(Never(), failing),
		Not(failing),
		NWhile(failing, 5),
	} {
		_, err := cond.IsSatisfied(context.Background(), st, "A")
		require.ErrorIs(t, err, sentinel)
	}
}

func TestNWhileBoundsOwnerExecutions(t *testing.T) {
	st := newTestState("A")
	cond := NWhile(Always(), 2)

	require.True(t, satisfied(t, cond, st, "A"))
	st.Counters.RecordExecution("A")
	require.True(t, satisfied(t, cond, st, "A"))
	st.Counters.RecordExecution("A")
	require.False(t, satisfied(t, cond, st, "A"))
}

func TestConditionSetDefaultsAndLookup(t *testing.T) {
	cs := NewConditionSet()
	require.False(t, cs.Contains("A"))
	require.Nil(t, cs.Get("A"))

	cs.Add("A", Never())
	require.True(t, cs.Contains("A"))

	cs.AddSet(map[Node]Condition{"A": Always(), "B": Never()})
	st := newTestState("A", "B")
	st.Conditions = cs

	require.True(t, satisfied(t, cs.Get("A"), st, "A"))

	ok, err := cs.IsSatisfied(context.Background(), st, "B")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = cs.IsSatisfied(context.Background(), st, "C")
	require.ErrorIs(t, err, ErrSchedulerConfig)
}
