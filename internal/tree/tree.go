package tree

import (
	"errors"
	"sort"
	"sync"
)

// ErrCycleDetected is returned by AddEdges when the requested edges would
// close a cycle in the dependency graph.
var ErrCycleDetected = errors.New("dependency cycle detected")

// Tree is a concurrent-safe dependency tree with a precomputed descendant
// index.
type Tree struct {
	mu          sync.RWMutex
	children    map[string]map[string]struct{}
	descendants map[string]map[string]struct{}
}

// New creates an empty Tree.
func New() *Tree {
	return &Tree{
		children:    make(map[string]map[string]struct{}),
		descendants: make(map[string]map[string]struct{}),
	}
}

// AddEdges merges children into the parent's child set and recomputes the
// descendant index. Adding the same children twice is a no-op. Returns
// ErrCycleDetected, without mutating the tree, if any edge would close a
// cycle.
func (t *Tree) AddEdges(parent string, children []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// New edges all originate at parent, so a cycle can only form through a
	// pre-existing path child -> ... -> parent.
	for _, child := range children {
		if child == parent || t.reachableLocked(child, parent) {
			return ErrCycleDetected
		}
	}

	set, ok := t.children[parent]
	if !ok {
		set = make(map[string]struct{})
		t.children[parent] = set
	}
	for _, child := range children {
		set[child] = struct{}{}
	}

	t.recomputeLocked()
	return nil
}

// Children returns the direct children of node, sorted.
func (t *Tree) Children(node string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedKeys(t.children[node])
}

// Descendants returns all transitive descendants of node, sorted.
func (t *Tree) Descendants(node string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedKeys(t.descendants[node])
}

// RestartSet returns the deduplicated, sorted set of workloads that must be
// restarted when every member of triggers changed. Triggers themselves are
// excluded: they already restarted.
func (t *Tree) RestartSet(triggers []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	triggerSet := make(map[string]struct{}, len(triggers))
	for _, trigger := range triggers {
		triggerSet[trigger] = struct{}{}
	}

	result := make(map[string]struct{})
	for trigger := range triggerSet {
		for node := range t.descendants[trigger] {
			if _, isTrigger := triggerSet[node]; !isTrigger {
				result[node] = struct{}{}
			}
		}
	}
	return sortedKeys(result)
}

// Edges returns a copy of the current adjacency with sorted child lists.
func (t *Tree) Edges() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	edges := make(map[string][]string, len(t.children))
	for parent, set := range t.children {
		edges[parent] = sortedKeys(set)
	}
	return edges
}

// Len returns the number of known nodes (parents and children).
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.descendants)
}

// reachableLocked reports whether to is reachable from from by following
// child edges. Caller must hold t.mu.
func (t *Tree) reachableLocked(from, to string) bool {
	stack := []string{from}
	visited := map[string]struct{}{from: {}}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == to {
			return true
		}
		for child := range t.children[node] {
			if _, seen := visited[child]; !seen {
				visited[child] = struct{}{}
				stack = append(stack, child)
			}
		}
	}
	return false
}

// recomputeLocked rebuilds the descendant index for every node appearing as
// a parent or a child. Caller must hold t.mu.
func (t *Tree) recomputeLocked() {
	nodes := make(map[string]struct{})
	for parent, children := range t.children {
		nodes[parent] = struct{}{}
		for child := range children {
			nodes[child] = struct{}{}
		}
	}

	t.descendants = make(map[string]map[string]struct{}, len(nodes))
	for node := range nodes {
		t.descendants[node] = t.collectLocked(node)
	}
}

// collectLocked gathers every node reachable from node using an explicit
// stack. Caller must hold t.mu.
func (t *Tree) collectLocked(node string) map[string]struct{} {
	result := make(map[string]struct{})
	stack := make([]string, 0, len(t.children[node]))
	for child := range t.children[node] {
		stack = append(stack, child)
	}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := result[current]; seen {
			continue
		}
		result[current] = struct{}{}
		for child := range t.children[current] {
			stack = append(stack, child)
		}
	}
	return result
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
