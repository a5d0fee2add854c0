package digraph

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/tickwise/tickwise/internal/digraph/scheduler"
)

// Errors for building schedule graphs from definitions.
var (
	ErrNodeNameRequired  = errors.New("node name is required")
	ErrDuplicateNode     = errors.New("duplicate node name")
	ErrUnknownDependency = errors.New("dependency on unknown node")
	ErrInvalidCondition  = errors.New("invalid condition")
	ErrInvalidTimeScale  = errors.New("invalid time scale")
)

// Graph is a built schedule definition: the node set, the dependency graph
// among the nodes, the per-node conditions, and the termination conditions
// the schedule runs under.
type Graph struct {
	Name         string
	Nodes        []scheduler.Node
	Dependencies scheduler.DependencyGraph
	Conditions   *scheduler.ConditionSet
	Termination  map[scheduler.TimeScale]scheduler.Condition
}

// Scheduler constructs a scheduler for the graph with its conditions bound.
func (g *Graph) Scheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(scheduler.Config{
		Nodes:        g.Nodes,
		Dependencies: g.Dependencies,
		Conditions:   g.Conditions,
	})
}

func build(def *definition) (*Graph, error) {
	if len(def.Nodes) == 0 {
		return nil, fmt.Errorf("%w: schedule %q has no nodes", ErrNodeNameRequired, def.Name)
	}

	graph := &Graph{
		Name:         def.Name,
		Dependencies: make(scheduler.DependencyGraph, len(def.Nodes)),
		Conditions:   scheduler.NewConditionSet(),
	}

	seen := map[string]struct{}{}
	for _, n := range def.Nodes {
		if n.Name == "" {
			return nil, ErrNodeNameRequired
		}
		if _, ok := seen[n.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, n.Name)
		}
		seen[n.Name] = struct{}{}
		graph.Nodes = append(graph.Nodes, scheduler.Node(n.Name))
	}

	for _, n := range def.Nodes {
		node := scheduler.Node(n.Name)
		for _, dep := range n.Depends {
			if _, ok := seen[dep]; !ok {
				return nil, fmt.Errorf("%w: node %q depends on %q", ErrUnknownDependency, n.Name, dep)
			}
		}
		graph.Dependencies[node] = lo.Map(n.Depends, func(dep string, _ int) scheduler.Node {
			return scheduler.Node(dep)
		})
		if n.Condition != nil {
			cond, err := buildCondition(n.Condition)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", n.Name, err)
			}
			graph.Conditions.Add(node, cond)
		}
	}

	if def.Termination != nil {
		graph.Termination = make(map[scheduler.TimeScale]scheduler.Condition, len(def.Termination))
		for name, condDef := range def.Termination {
			scale, ok := scheduler.ParseTimeScale(name)
			if !ok {
				return nil, fmt.Errorf("%w: termination scale %q", ErrInvalidTimeScale, name)
			}
			if condDef == nil {
				continue
			}
			cond, err := buildCondition(condDef)
			if err != nil {
				return nil, fmt.Errorf("termination %s: %w", scale, err)
			}
			graph.Termination[scale] = cond
		}
	}

	return graph, nil
}

// buildCondition turns a one-of condition definition into a scheduler
// Condition, recursing through combinators.
func buildCondition(def *conditionDef) (scheduler.Condition, error) {
	var conds []scheduler.Condition

	if def.Always {
		conds = append(conds, scheduler.Always())
	}
	if def.Never {
		conds = append(conds, scheduler.Never())
	}
	if def.AtPass != nil {
		conds = append(conds, scheduler.AtPass(*def.AtPass))
	}
	if def.AfterNPasses != nil {
		conds = append(conds, scheduler.AfterNPasses(*def.AfterNPasses))
	}
	if def.EveryNPasses != nil {
		conds = append(conds, scheduler.EveryNPasses(*def.EveryNPasses))
	}
	if def.EveryNCalls != nil {
		if def.EveryNCalls.Node == "" || def.EveryNCalls.N <= 0 {
			return nil, fmt.Errorf("%w: everyNCalls requires a node and n > 0", ErrInvalidCondition)
		}
		conds = append(conds, scheduler.EveryNCalls(scheduler.Node(def.EveryNCalls.Node), def.EveryNCalls.N))
	}
	if def.AfterNCalls != nil {
		if def.AfterNCalls.Node == "" || def.AfterNCalls.N <= 0 {
			return nil, fmt.Errorf("%w: afterNCalls requires a node and n > 0", ErrInvalidCondition)
		}
		scale := scheduler.ScaleTrial
		if def.AfterNCalls.Scale != "" {
			var ok bool
			scale, ok = scheduler.ParseTimeScale(def.AfterNCalls.Scale)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrInvalidTimeScale, def.AfterNCalls.Scale)
			}
		}
		conds = append(conds, scheduler.AfterNCalls(scheduler.Node(def.AfterNCalls.Node), def.AfterNCalls.N, scale))
	}
	if def.AllHaveRun != nil {
		scale := scheduler.ScaleTrial
		if def.AllHaveRun.Scale != "" {
			var ok bool
			scale, ok = scheduler.ParseTimeScale(def.AllHaveRun.Scale)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrInvalidTimeScale, def.AllHaveRun.Scale)
			}
		}
		nodes := lo.Map(def.AllHaveRun.Nodes, func(n string, _ int) scheduler.Node {
			return scheduler.Node(n)
		})
		conds = append(conds, scheduler.AllHaveRun(scale, nodes...))
	}
	if len(def.All) > 0 {
		children, err := buildConditions(def.All)
		if err != nil {
			return nil, err
		}
		conds = append(conds, scheduler.All(children...))
	}
	if len(def.Any) > 0 {
		children, err := buildConditions(def.Any)
		if err != nil {
			return nil, err
		}
		conds = append(conds, scheduler.Any(children...))
	}
	if def.Not != nil {
		child, err := buildCondition(def.Not)
		if err != nil {
			return nil, err
		}
		conds = append(conds, scheduler.Not(child))
	}
	if def.NWhile != nil {
		if def.NWhile.Condition == nil || def.NWhile.N <= 0 {
			return nil, fmt.Errorf("%w: nWhile requires a condition and n > 0", ErrInvalidCondition)
		}
		child, err := buildCondition(def.NWhile.Condition)
		if err != nil {
			return nil, err
		}
		conds = append(conds, scheduler.NWhile(child, def.NWhile.N))
	}

	switch len(conds) {
	case 0:
		return nil, fmt.Errorf("%w: no condition type set", ErrInvalidCondition)
	case 1:
		return conds[0], nil
	default:
		return nil, fmt.Errorf("%w: more than one condition type set", ErrInvalidCondition)
	}
}

func buildConditions(defs []*conditionDef) ([]scheduler.Condition, error) {
	conds := make([]scheduler.Condition, 0, len(defs))
	for _, def := range defs {
		cond, err := buildCondition(def)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}
