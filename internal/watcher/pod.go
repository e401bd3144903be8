package watcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/WiredSharp/restart-controller/internal/owner"
)

// podReducer detects container restarts. It keeps the last observed
// aggregate restart count per pod name.
type podReducer struct {
	logger   *zap.Logger
	resolver *owner.Resolver

	mu            sync.Mutex
	restartCounts map[string]int32
}

// NewPodWatcher returns a Watcher that signals the owning Deployment when a
// pod's container restart count increases or a managed pod is deleted.
func NewPodWatcher(client kubernetes.Interface, namespace string, resolver *owner.Resolver, signals chan<- Signal, logger *zap.Logger) *Watcher {
	r := &podReducer{
		logger:        logger.Named("pod-reducer"),
		resolver:      resolver,
		restartCounts: make(map[string]int32),
	}
	open := func(ctx context.Context) (watch.Interface, error) {
		return client.CoreV1().Pods(namespace).Watch(ctx, metav1.ListOptions{})
	}
	return newWatcher(SourcePods, signals, open, r.reduce, logger)
}

func (r *podReducer) reduce(ctx context.Context, event watch.Event) (Signal, bool) {
	pod, ok := event.Object.(*corev1.Pod)
	if !ok {
		return Signal{}, false
	}

	if event.Type == watch.Deleted {
		r.mu.Lock()
		delete(r.restartCounts, pod.Name)
		r.mu.Unlock()

		// Pod loss may itself end a restart cycle (eviction); dependents
		// must re-check.
		deployment, resolved := r.resolver.Resolve(ctx, pod)
		if !resolved {
			return Signal{}, false
		}
		r.logger.Info("Pod deleted",
			zap.String("pod", pod.Name),
			zap.String("deployment", deployment))
		return Signal{
			Workload: deployment,
			Reason:   fmt.Sprintf("pod %s deleted", pod.Name),
			Source:   SourcePods,
		}, true
	}

	if event.Type != watch.Added && event.Type != watch.Modified {
		return Signal{}, false
	}
	if len(pod.Status.ContainerStatuses) == 0 {
		return Signal{}, false
	}

	var total int32
	for _, cs := range pod.Status.ContainerStatuses {
		total += cs.RestartCount
	}

	r.mu.Lock()
	prev := r.restartCounts[pod.Name]
	r.restartCounts[pod.Name] = total
	r.mu.Unlock()

	// prev > 0 suppresses the first observation of a pod that already had
	// restarts at watch start: that is a snapshot, not a transition.
	if total <= prev || prev == 0 {
		return Signal{}, false
	}

	deployment, resolved := r.resolver.Resolve(ctx, pod)
	if !resolved {
		return Signal{}, false
	}
	r.logger.Info("Pod restarted",
		zap.String("pod", pod.Name),
		zap.Int32("previous", prev),
		zap.Int32("current", total),
		zap.String("deployment", deployment))
	return Signal{
		Workload: deployment,
		Reason:   fmt.Sprintf("pod %s restarted (count %d -> %d)", pod.Name, prev, total),
		Source:   SourcePods,
	}, true
}
