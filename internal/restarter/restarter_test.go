package restarter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/WiredSharp/restart-controller/internal/annotations"
	"github.com/WiredSharp/restart-controller/internal/testutil"
	"github.com/WiredSharp/restart-controller/internal/tree"
)

// staticTree satisfies TreeSource with a fixed tree.
type staticTree struct{ tree *tree.Tree }

func (s staticTree) Current() *tree.Tree { return s.tree }

func newTestRestarter(t *testing.T, clientObjects ...runtime.Object) (*Restarter, *fake.Clientset, *time.Time) {
	t.Helper()
	client := fake.NewSimpleClientset(clientObjects...)
	r := New(client, "default", nil, zap.NewNop(), Options{Cooldown: time.Minute})
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	return r, client, &clock
}

func patchActions(client *fake.Clientset) []k8stesting.PatchAction {
	var patches []k8stesting.PatchAction
	for _, action := range client.Actions() {
		if patch, ok := action.(k8stesting.PatchAction); ok {
			patches = append(patches, patch)
		}
	}
	return patches
}

func TestRestartIssuesAnnotationPatch(t *testing.T) {
	r, client, _ := newTestRestarter(t, testutil.Deployment("default", "api", "db"))

	outcome := r.Restart(context.Background(), "api", "parent db changed", "wave-1")
	require.Equal(t, OutcomeRestarted, outcome)

	patches := patchActions(client)
	require.Len(t, patches, 1)
	assert.Equal(t, "api", patches[0].GetName())

	// The patch must merge only the controller-owned template annotations.
	var payload struct {
		Spec struct {
			Template struct {
				Metadata struct {
					Annotations map[string]string `json:"annotations"`
				} `json:"metadata"`
			} `json:"template"`
		} `json:"spec"`
	}
	require.NoError(t, json.Unmarshal(patches[0].GetPatch(), &payload))
	got := payload.Spec.Template.Metadata.Annotations
	assert.Equal(t, "2025-06-01T12:00:00Z", got[annotations.LastRestart])
	assert.Equal(t, "parent db changed", got[annotations.RestartReason])
	assert.Equal(t, "wave-1", got[annotations.Wave])
	assert.Len(t, got, 3)
}

func TestRestartCooldown(t *testing.T) {
	r, client, clock := newTestRestarter(t, testutil.Deployment("default", "api", "db"))
	ctx := context.Background()

	require.Equal(t, OutcomeRestarted, r.Restart(ctx, "api", "first", "w1"))

	// Second call inside the cooldown window is skipped, not failed.
	*clock = clock.Add(30 * time.Second)
	require.Equal(t, OutcomeSkipped, r.Restart(ctx, "api", "second", "w2"))
	assert.Len(t, patchActions(client), 1, "exactly one applied mutation inside the window")

	// After the cooldown elapses a third call succeeds.
	*clock = clock.Add(31 * time.Second)
	require.Equal(t, OutcomeRestarted, r.Restart(ctx, "api", "third", "w3"))
	assert.Len(t, patchActions(client), 2)
}

func TestRestartFailureLeavesLedgerUntouched(t *testing.T) {
	r, client, _ := newTestRestarter(t, testutil.Deployment("default", "api", "db"))

	var fail = true
	client.PrependReactor("patch", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if fail {
			return true, nil, errors.New("transient")
		}
		return false, nil, nil
	})

	ctx := context.Background()
	require.Equal(t, OutcomeFailed, r.Restart(ctx, "api", "first", "w1"))
	assert.Empty(t, r.Ledger(), "failed restart must not start a cooldown")
	_, issued := r.LastWave("api")
	assert.False(t, issued)

	// The next trigger retries immediately rather than being blocked.
	fail = false
	require.Equal(t, OutcomeRestarted, r.Restart(ctx, "api", "retry", "w2"))

	entry := r.Ledger()["api"]
	assert.Equal(t, "w2", entry.Wave)
}

func TestCascadeRestartsAllDependents(t *testing.T) {
	tr := tree.New()
	require.NoError(t, tr.AddEdges("db", []string{"api", "worker"}))

	client := fake.NewSimpleClientset(
		testutil.Deployment("default", "db", ""),
		testutil.Deployment("default", "api", "db"),
		testutil.Deployment("default", "worker", "db"),
	)
	r := New(client, "default", staticTree{tr}, zap.NewNop(), Options{Cooldown: time.Minute})

	result := r.Cascade(context.Background(), "db", "parent db changed")
	assert.ElementsMatch(t, []string{"api", "worker"}, result.Restarted)
	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.Failed)

	patches := patchActions(client)
	require.Len(t, patches, 2)

	// Both targets carry the same wave stamp and a ledger entry.
	ledger := r.Ledger()
	require.Contains(t, ledger, "api")
	require.Contains(t, ledger, "worker")
	assert.Equal(t, ledger["api"].Wave, ledger["worker"].Wave)
	assert.NotEmpty(t, ledger["api"].Wave)

	wave, issued := r.LastWave("api")
	require.True(t, issued)
	assert.Equal(t, ledger["api"].Wave, wave)
}

func TestCascadeLeafTriggerIssuesNothing(t *testing.T) {
	tr := tree.New()
	require.NoError(t, tr.AddEdges("db", []string{"api"}))
	require.NoError(t, tr.AddEdges("api", []string{"frontend"}))

	client := fake.NewSimpleClientset()
	r := New(client, "default", staticTree{tr}, zap.NewNop(), Options{})

	result := r.Cascade(context.Background(), "frontend", "leaf changed")
	assert.Equal(t, 0, result.Targets())
	assert.Empty(t, patchActions(client), "leaf trigger must not mutate anything")
}

func TestCascadePartialFailure(t *testing.T) {
	tr := tree.New()
	require.NoError(t, tr.AddEdges("db", []string{"api", "worker"}))

	client := fake.NewSimpleClientset(
		testutil.Deployment("default", "api", "db"),
		testutil.Deployment("default", "worker", "db"),
	)
	client.PrependReactor("patch", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if action.(k8stesting.PatchAction).GetName() == "worker" {
			return true, nil, errors.New("transient")
		}
		return false, nil, nil
	})

	r := New(client, "default", staticTree{tr}, zap.NewNop(), Options{})
	result := r.Cascade(context.Background(), "db", "parent db changed")

	assert.Equal(t, []string{"api"}, result.Restarted)
	assert.Equal(t, []string{"worker"}, result.Failed)
	assert.Empty(t, result.Skipped)
}
