// Package tree stores the parent/child relationships between workloads and
// answers restart-set queries.
//
// # Contract
//
// The Tree keeps a directed adjacency (parent -> set of children) and an
// eagerly recomputed index of transitive descendants, so lookups after a
// mutation are O(1).
//
// Thread safety: all methods are safe for concurrent use via sync.RWMutex.
//
// # Methods
//
//	AddEdges(parent string, children []string) error
//	  - Merges children into the parent's child set (idempotent, duplicates
//	    collapse), then recomputes the descendant index for every known node.
//	  - Returns ErrCycleDetected and leaves the tree unchanged if any new
//	    edge would close a cycle.
//
//	Children(node string) []string
//	  - Direct children, sorted. Empty for unknown nodes, never an error.
//
//	Descendants(node string) []string
//	  - All transitive descendants, sorted. Empty for unknown nodes.
//
//	RestartSet(triggers []string) []string
//	  - Union of the triggers' descendants minus the trigger set itself: a
//	    workload that is itself a trigger already restarted and is excluded
//	    from its own cascade. Deterministic, non-mutating, empty for empty
//	    input.
//
//	Edges() map[string][]string
//	  - Copy of the current adjacency, children sorted. Used by the debug
//	    API and restartctl.
//
// Descendant recomputation is an iterative depth-first reachability closure
// (explicit stack, no recursion) so deep trees cannot exhaust the call
// stack.
package tree
