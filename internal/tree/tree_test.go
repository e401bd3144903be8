package tree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEdgesAndChildren(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddEdges("db", []string{"api", "worker"}))

	assert.Equal(t, []string{"api", "worker"}, tr.Children("db"))
	assert.Empty(t, tr.Children("api"))
	assert.Empty(t, tr.Children("unknown"))
}

func TestAddEdgesIdempotent(t *testing.T) {
	a := New()
	require.NoError(t, a.AddEdges("db", []string{"api", "worker"}))
	require.NoError(t, a.AddEdges("db", []string{"api", "worker"}))

	b := New()
	require.NoError(t, b.AddEdges("db", []string{"api", "worker"}))

	assert.Equal(t, b.Descendants("db"), a.Descendants("db"))
	assert.Equal(t, b.Children("db"), a.Children("db"))
	assert.Equal(t, b.Len(), a.Len())
}

func TestAddEdgesEmptyChildren(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddEdges("db", nil))
	assert.Empty(t, tr.Children("db"))
	assert.Empty(t, tr.Descendants("db"))
}

func TestDescendantsTransitive(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddEdges("db", []string{"api"}))
	require.NoError(t, tr.AddEdges("api", []string{"frontend", "gateway"}))
	require.NoError(t, tr.AddEdges("gateway", []string{"edge"}))

	assert.Equal(t, []string{"api", "edge", "frontend", "gateway"}, tr.Descendants("db"))
	assert.Equal(t, []string{"edge", "frontend", "gateway"}, tr.Descendants("api"))
	assert.Equal(t, []string{"edge"}, tr.Descendants("gateway"))
	// Leaves are known nodes with empty descendant sets.
	assert.Empty(t, tr.Descendants("frontend"))
	assert.Empty(t, tr.Descendants("edge"))
	assert.Empty(t, tr.Descendants("unknown"))
}

func TestDescendantsReflectLaterEdges(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddEdges("db", []string{"api"}))
	assert.Equal(t, []string{"api"}, tr.Descendants("db"))

	// Extending a child's subtree must be visible from the ancestor.
	require.NoError(t, tr.AddEdges("api", []string{"frontend"}))
	assert.Equal(t, []string{"api", "frontend"}, tr.Descendants("db"))
}

func TestRestartSetExcludesTriggers(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddEdges("a", []string{"b"}))
	require.NoError(t, tr.AddEdges("b", []string{"c"}))

	set := tr.RestartSet([]string{"a", "b"})
	assert.Equal(t, []string{"c"}, set)
	assert.NotContains(t, set, "a")
	assert.NotContains(t, set, "b")
}

func TestRestartSetEmptyInput(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddEdges("a", []string{"b"}))
	assert.Empty(t, tr.RestartSet(nil))
	assert.Empty(t, tr.RestartSet([]string{}))
}

func TestRestartSetDisjointSubtreesUnion(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddEdges("a", []string{"a1", "a2"}))
	require.NoError(t, tr.AddEdges("b", []string{"b1"}))

	assert.Equal(t, []string{"a1", "a2"}, tr.RestartSet([]string{"a"}))
	assert.Equal(t, []string{"b1"}, tr.RestartSet([]string{"b"}))
	assert.Equal(t, []string{"a1", "a2", "b1"}, tr.RestartSet([]string{"a", "b"}))
}

func TestRestartSetLeafTrigger(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddEdges("db", []string{"api"}))
	require.NoError(t, tr.AddEdges("api", []string{"frontend"}))

	assert.Equal(t, []string{"api", "frontend"}, tr.RestartSet([]string{"db"}))
	assert.Empty(t, tr.RestartSet([]string{"frontend"}))
}

func TestAddEdgesRejectsSelfLoop(t *testing.T) {
	tr := New()
	err := tr.AddEdges("a", []string{"a"})
	require.ErrorIs(t, err, ErrCycleDetected)
	assert.Equal(t, 0, tr.Len())
}

func TestAddEdgesRejectsCycle(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddEdges("a", []string{"b"}))
	require.NoError(t, tr.AddEdges("b", []string{"c"}))

	err := tr.AddEdges("c", []string{"a"})
	require.ErrorIs(t, err, ErrCycleDetected)

	// The rejected mutation must not be observable.
	assert.Empty(t, tr.Children("c"))
	assert.Equal(t, []string{"b", "c"}, tr.Descendants("a"))
}

func TestEdgesSnapshot(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddEdges("db", []string{"worker", "api"}))

	edges := tr.Edges()
	assert.Equal(t, map[string][]string{"db": {"api", "worker"}}, edges)

	// Mutating the snapshot must not affect the tree.
	edges["db"] = append(edges["db"], "rogue")
	assert.Equal(t, []string{"api", "worker"}, tr.Children("db"))
}

func TestDeepChain(t *testing.T) {
	tr := New()
	const depth = 500
	names := make([]string, depth)
	for i := range names {
		names[i] = fmt.Sprintf("n%03d", i)
	}
	for i := 0; i < depth-1; i++ {
		require.NoError(t, tr.AddEdges(names[i], []string{names[i+1]}))
	}

	assert.Len(t, tr.Descendants(names[0]), depth-1)
	assert.Len(t, tr.RestartSet([]string{names[0]}), depth-1)
	assert.Equal(t, []string{names[depth-1]}, tr.Descendants(names[depth-2]))
}
