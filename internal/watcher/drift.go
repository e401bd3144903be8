package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/WiredSharp/restart-controller/internal/annotations"
)

// WaveSource reports the wave identifier of the most recent orchestrator-
// issued restart for a workload. The restarter implements it.
type WaveSource interface {
	LastWave(workload string) (string, bool)
}

// driftReducer detects pod-template changes on managed Deployments. It keeps
// the last observed template fingerprint per Deployment name.
type driftReducer struct {
	logger *zap.Logger
	waves  WaveSource

	mu           sync.Mutex
	fingerprints map[string]string
	// suppressed records the wave already consumed per workload: one issued
	// restart produces exactly one template-changing echo, so each wave
	// suppresses at most one observed change. A later external edit that
	// still carries the stale stamp is a genuine change.
	suppressed map[string]string
}

// NewDeploymentWatcher returns a Watcher that signals a Deployment whose pod
// template drifted, suppressing changes stamped with the orchestrator's own
// last wave.
func NewDeploymentWatcher(client kubernetes.Interface, namespace string, waves WaveSource, signals chan<- Signal, logger *zap.Logger) *Watcher {
	r := &driftReducer{
		logger:       logger.Named("drift-reducer"),
		waves:        waves,
		fingerprints: make(map[string]string),
		suppressed:   make(map[string]string),
	}
	open := func(ctx context.Context) (watch.Interface, error) {
		return client.AppsV1().Deployments(namespace).Watch(ctx, metav1.ListOptions{})
	}
	return newWatcher(SourceDeployments, signals, open, r.reduce, logger)
}

func (r *driftReducer) reduce(_ context.Context, event watch.Event) (Signal, bool) {
	deployment, ok := event.Object.(*appsv1.Deployment)
	if !ok {
		return Signal{}, false
	}

	if event.Type == watch.Deleted {
		r.mu.Lock()
		delete(r.fingerprints, deployment.Name)
		delete(r.suppressed, deployment.Name)
		r.mu.Unlock()
		return Signal{}, false
	}

	// Only objects placed under restart management participate.
	if !annotations.Managed(deployment.Spec.Template.Annotations) &&
		!annotations.Managed(deployment.Annotations) {
		return Signal{}, false
	}

	fingerprint := templateFingerprint(&deployment.Spec.Template)

	r.mu.Lock()
	prev, known := r.fingerprints[deployment.Name]
	r.fingerprints[deployment.Name] = fingerprint
	r.mu.Unlock()

	if event.Type != watch.Modified || !known || fingerprint == prev {
		return Signal{}, false
	}

	// A template stamped with the orchestrator's own last wave is the echo
	// of a restart this controller just issued. Each wave is consumed by
	// the first echo it suppresses.
	wave := deployment.Spec.Template.Annotations[annotations.Wave]
	if wave != "" {
		if last, issued := r.waves.LastWave(deployment.Name); issued && last == wave {
			r.mu.Lock()
			consumed := r.suppressed[deployment.Name] == wave
			if !consumed {
				r.suppressed[deployment.Name] = wave
			}
			r.mu.Unlock()
			if !consumed {
				r.logger.Info("Suppressing self-inflicted template change",
					zap.String("deployment", deployment.Name),
					zap.String("wave", wave))
				return Signal{}, false
			}
		}
	}

	r.logger.Info("Pod template changed",
		zap.String("deployment", deployment.Name))
	return Signal{
		Workload: deployment.Name,
		Reason:   "pod template changed",
		Source:   SourceDeployments,
	}, true
}

// templateFingerprint hashes the JSON encoding of the full pod template,
// metadata included, so any rollout-forcing change is observable.
func templateFingerprint(template *corev1.PodTemplateSpec) string {
	data, err := json.Marshal(template)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
