package watcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/WiredSharp/restart-controller/internal/owner"
	"github.com/WiredSharp/restart-controller/internal/testutil"
)

func newPodReducer(t *testing.T) *podReducer {
	t.Helper()
	client := fake.NewSimpleClientset(testutil.ReplicaSet("default", "db-abc123", "db"))
	return &podReducer{
		logger:        zap.NewNop(),
		resolver:      owner.New(client, "default", zap.NewNop()),
		restartCounts: make(map[string]int32),
	}
}

func TestPodReducerFirstObservationIsSnapshot(t *testing.T) {
	r := newPodReducer(t)
	ctx := context.Background()

	// A pod first seen with pre-existing restarts is a snapshot, not a
	// transition.
	pod := testutil.Pod("default", "db-abc123-xyz", "db-abc123", 5)
	_, emit := r.reduce(ctx, watch.Event{Type: watch.Added, Object: pod})
	assert.False(t, emit)

	// A subsequent increase is a genuine restart.
	pod = testutil.Pod("default", "db-abc123-xyz", "db-abc123", 6)
	signal, emit := r.reduce(ctx, watch.Event{Type: watch.Modified, Object: pod})
	require.True(t, emit)
	assert.Equal(t, "db", signal.Workload)
	assert.Equal(t, SourcePods, signal.Source)

	// Replay of the same count emits nothing.
	_, emit = r.reduce(ctx, watch.Event{Type: watch.Modified, Object: pod})
	assert.False(t, emit)
}

func TestPodReducerSumsContainerRestarts(t *testing.T) {
	r := newPodReducer(t)
	ctx := context.Background()

	pod := testutil.Pod("default", "db-abc123-xyz", "db-abc123", 2, 3)
	_, emit := r.reduce(ctx, watch.Event{Type: watch.Added, Object: pod})
	require.False(t, emit)

	// Any single container restarting bumps the aggregate.
	pod = testutil.Pod("default", "db-abc123-xyz", "db-abc123", 2, 4)
	signal, emit := r.reduce(ctx, watch.Event{Type: watch.Modified, Object: pod})
	require.True(t, emit)
	assert.Equal(t, "db", signal.Workload)
}

func TestPodReducerIgnoresPodsWithoutStatuses(t *testing.T) {
	r := newPodReducer(t)

	pod := testutil.Pod("default", "db-abc123-xyz", "db-abc123")
	_, emit := r.reduce(context.Background(), watch.Event{Type: watch.Added, Object: pod})
	assert.False(t, emit)
}

func TestPodReducerUnresolvedOwnerEmitsNothing(t *testing.T) {
	r := newPodReducer(t)
	ctx := context.Background()

	pod := testutil.Pod("default", "bare-pod", "", 5)
	_, emit := r.reduce(ctx, watch.Event{Type: watch.Added, Object: pod})
	require.False(t, emit)

	pod = testutil.Pod("default", "bare-pod", "", 6)
	_, emit = r.reduce(ctx, watch.Event{Type: watch.Modified, Object: pod})
	assert.False(t, emit, "restart of an unowned pod must not signal")
}

func TestPodReducerDeletion(t *testing.T) {
	r := newPodReducer(t)
	ctx := context.Background()

	pod := testutil.Pod("default", "db-abc123-xyz", "db-abc123", 5)
	_, emit := r.reduce(ctx, watch.Event{Type: watch.Added, Object: pod})
	require.False(t, emit)

	signal, emit := r.reduce(ctx, watch.Event{Type: watch.Deleted, Object: pod})
	require.True(t, emit)
	assert.Equal(t, "db", signal.Workload)

	// The observation entry is gone: a recreated pod starts from scratch,
	// so its first observation is again a snapshot.
	pod = testutil.Pod("default", "db-abc123-xyz", "db-abc123", 7)
	_, emit = r.reduce(ctx, watch.Event{Type: watch.Added, Object: pod})
	assert.False(t, emit)
}

func TestPodReducerDeletionOfUnresolvablePod(t *testing.T) {
	r := newPodReducer(t)

	pod := testutil.Pod("default", "bare-pod", "", 1)
	_, emit := r.reduce(context.Background(), watch.Event{Type: watch.Deleted, Object: pod})
	assert.False(t, emit)
}
