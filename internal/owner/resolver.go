// Package owner resolves a pod to the Deployment that logically owns it,
// following the pod's ReplicaSet owner reference one level up.
//
// Resolutions are cached by ReplicaSet name: all pods of one ReplicaSet
// belong to the same Deployment, and a ReplicaSet's owner never changes for
// its lifetime, so entries are never invalidated. A ReplicaSet with no
// Deployment owner is cached as an explicit no-owner sentinel. At most one
// API lookup is performed per distinct ReplicaSet name over the process
// lifetime; a failed lookup writes nothing so the next call retries.
package owner

import (
	"context"
	"sync"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	replicaSetKind = "ReplicaSet"
	deploymentKind = "Deployment"
)

// cacheEntry records a resolved ReplicaSet owner. found=false is the
// explicit "no owner" sentinel.
type cacheEntry struct {
	deployment string
	found      bool
}

// Resolver maps pods to their owning Deployment.
type Resolver struct {
	logger    *zap.Logger
	client    kubernetes.Interface
	namespace string

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New creates a Resolver for one namespace.
func New(client kubernetes.Interface, namespace string, logger *zap.Logger) *Resolver {
	return &Resolver{
		logger:    logger.Named("owner-resolver"),
		client:    client,
		namespace: namespace,
		cache:     make(map[string]cacheEntry),
	}
}

// Resolve returns the name of the Deployment owning pod, if any. A pod with
// no ReplicaSet owner reference resolves to nothing without touching the
// cache.
func (r *Resolver) Resolve(ctx context.Context, pod *corev1.Pod) (string, bool) {
	for _, ref := range pod.OwnerReferences {
		if ref.Kind != replicaSetKind {
			continue
		}

		r.mu.Lock()
		entry, cached := r.cache[ref.Name]
		r.mu.Unlock()
		if cached {
			return entry.deployment, entry.found
		}

		rs, err := r.client.AppsV1().ReplicaSets(r.namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		if err != nil {
			// No cache write: the next resolution retries the lookup.
			r.logger.Warn("Failed to look up ReplicaSet",
				zap.String("replicaset", ref.Name),
				zap.Error(err))
			continue
		}

		entry = cacheEntry{}
		for _, rsRef := range rs.OwnerReferences {
			if rsRef.Kind == deploymentKind {
				entry = cacheEntry{deployment: rsRef.Name, found: true}
				break
			}
		}

		r.mu.Lock()
		r.cache[ref.Name] = entry
		r.mu.Unlock()

		return entry.deployment, entry.found
	}
	return "", false
}
