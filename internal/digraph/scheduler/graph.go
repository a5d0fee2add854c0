package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Node is an opaque identifier for an external computational unit. The
// scheduler never inspects what a node does; it only tracks counters and
// condition bindings for it.
type Node string

// NodeSet is an unordered set of nodes.
type NodeSet map[Node]struct{}

// NewNodeSet returns a set containing the given nodes.
func NewNodeSet(nodes ...Node) NodeSet {
	s := make(NodeSet, len(nodes))
	for _, n := range nodes {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts node into the set.
func (s NodeSet) Add(node Node) {
	s[node] = struct{}{}
}

// Contains reports whether node is in the set.
func (s NodeSet) Contains(node Node) bool {
	_, ok := s[node]
	return ok
}

// Sorted returns the members in lexical order. Within-layer order carries no
// scheduling meaning; sorting only keeps iteration and output deterministic.
func (s NodeSet) Sorted() []Node {
	nodes := make([]Node, 0, len(s))
	for n := range s {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

func (s NodeSet) String() string {
	names := make([]string, 0, len(s))
	for _, n := range s.Sorted() {
		names = append(names, string(n))
	}
	return "{" + strings.Join(names, " ") + "}"
}

// DependencyGraph maps each node to the set of nodes that must have executed
// before it becomes eligible. Edges point from prerequisite to dependent.
type DependencyGraph map[Node][]Node

// ErrCycleDetected is returned when the dependency graph is not acyclic.
var ErrCycleDetected = errors.New("dependency graph contains a cycle")

// BuildConsiderationQueue partitions the node set into an ordered sequence of
// layers such that every node's prerequisites appear in strictly earlier
// layers and no two members of a layer depend on each other. It is a
// Kahn-style topological layering: repeatedly extract the nodes whose
// remaining prerequisites are all already placed.
func BuildConsiderationQueue(nodes []Node, deps DependencyGraph) ([]NodeSet, error) {
	members := NewNodeSet(nodes...)
	for node, prereqs := range deps {
		if !members.Contains(node) {
			return nil, fmt.Errorf("%w: dependency graph includes unknown node %q", ErrSchedulerConfig, node)
		}
		for _, p := range prereqs {
			if !members.Contains(p) {
				return nil, fmt.Errorf("%w: node %q depends on unknown node %q", ErrSchedulerConfig, node, p)
			}
		}
	}

	placed := make(NodeSet, len(nodes))
	remaining := NewNodeSet(nodes...)

	var queue []NodeSet
	for len(remaining) > 0 {
		layer := make(NodeSet)
		for node := range remaining {
			eligible := true
			for _, p := range deps[node] {
				if !placed.Contains(p) {
					eligible = false
					break
				}
			}
			if eligible {
				layer.Add(node)
			}
		}
		if len(layer) == 0 {
			return nil, fmt.Errorf("%w: unresolved nodes %s", ErrCycleDetected, remaining)
		}
		for node := range layer {
			placed.Add(node)
			delete(remaining, node)
		}
		queue = append(queue, layer)
	}

	return queue, nil
}
