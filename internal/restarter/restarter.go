// Package restarter issues loop-safe rollout restarts by patching workload
// pod-template annotations.
//
// Loop prevention uses two layers. Wave stamps are the system of record:
// every target of one cascade is patched with the same opaque wave id, and
// the drift detector suppresses the self-observed template change it
// produces. A per-workload cooldown window is layered on top purely as a
// thrash guard, collapsing rapid repeat triggers into a single mutation.
package restarter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/rand"
	"k8s.io/client-go/kubernetes"

	"github.com/WiredSharp/restart-controller/internal/annotations"
	"github.com/WiredSharp/restart-controller/internal/tree"
)

const waveLength = 8

// Outcome classifies one restart attempt.
type Outcome string

const (
	OutcomeRestarted Outcome = "restarted"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Result reports a cascade's targets grouped by outcome.
type Result struct {
	Restarted []string `json:"restarted"`
	Skipped   []string `json:"skipped"`
	Failed    []string `json:"failed"`
}

// Targets returns the total number of targets in the cascade.
func (r Result) Targets() int {
	return len(r.Restarted) + len(r.Skipped) + len(r.Failed)
}

// TreeSource provides the current dependency tree. The coordinator
// implements it.
type TreeSource interface {
	Current() *tree.Tree
}

// LedgerEntry is the loop-prevention record kept per restarted workload.
type LedgerEntry struct {
	LastRestart time.Time `json:"lastRestart"`
	Wave        string    `json:"wave"`
}

// Options configures a Restarter.
type Options struct {
	// Cooldown is the minimum interval between two issued restarts of the
	// same workload. Default: 60 seconds.
	Cooldown time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{Cooldown: 60 * time.Second}
}

// Restarter triggers Deployment rollouts via annotation patches.
type Restarter struct {
	logger    *zap.Logger
	client    kubernetes.Interface
	namespace string
	trees     TreeSource
	opts      Options

	// now is a test seam.
	now func() time.Time

	mu     sync.Mutex
	ledger map[string]LedgerEntry
}

// New creates a Restarter. trees may be nil if only Restart is used.
func New(client kubernetes.Interface, namespace string, trees TreeSource, logger *zap.Logger, opts Options) *Restarter {
	if opts.Cooldown == 0 {
		opts.Cooldown = DefaultOptions().Cooldown
	}
	return &Restarter{
		logger:    logger.Named("restarter"),
		client:    client,
		namespace: namespace,
		trees:     trees,
		opts:      opts,
		now:       time.Now,
		ledger:    make(map[string]LedgerEntry),
	}
}

// Restart patches the workload's pod-template annotations to force a
// rollout, stamping the restart timestamp, reason, and wave. A workload
// restarted within the cooldown window is skipped. A failed patch leaves the
// ledger untouched so the next qualifying trigger retries immediately.
func (r *Restarter) Restart(ctx context.Context, workload, reason, wave string) Outcome {
	r.mu.Lock()
	entry, known := r.ledger[workload]
	r.mu.Unlock()

	if known {
		if elapsed := r.now().Sub(entry.LastRestart); elapsed < r.opts.Cooldown {
			r.logger.Debug("Skipping restart inside cooldown",
				zap.String("deployment", workload),
				zap.Duration("since_last", elapsed))
			restartsTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
			return OutcomeSkipped
		}
	}

	patch, err := restartPatch(r.now().UTC().Format(time.RFC3339), reason, wave)
	if err != nil {
		r.logger.Error("Failed to encode restart patch", zap.Error(err))
		restartsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return OutcomeFailed
	}

	_, err = r.client.AppsV1().Deployments(r.namespace).
		Patch(ctx, workload, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		r.logger.Error("Failed to restart deployment",
			zap.String("deployment", workload),
			zap.Error(err))
		restartsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return OutcomeFailed
	}

	r.mu.Lock()
	r.ledger[workload] = LedgerEntry{LastRestart: r.now(), Wave: wave}
	r.mu.Unlock()

	r.logger.Info("Restarted deployment",
		zap.String("deployment", workload),
		zap.String("reason", reason),
		zap.String("wave", wave))
	restartsTotal.WithLabelValues(string(OutcomeRestarted)).Inc()
	return OutcomeRestarted
}

// Cascade restarts every dependent of trigger in the current tree, stamping
// all targets with one shared wave id. A partial cascade (some targets
// failed) is a reportable outcome, not an error.
func (r *Restarter) Cascade(ctx context.Context, trigger, reason string) Result {
	targets := r.trees.Current().RestartSet([]string{trigger})
	var result Result
	if len(targets) == 0 {
		r.logger.Info("No dependents to restart", zap.String("trigger", trigger))
		return result
	}

	wave := rand.String(waveLength)
	r.logger.Info("Cascading restart",
		zap.String("trigger", trigger),
		zap.Strings("targets", targets),
		zap.String("wave", wave))

	for _, target := range targets {
		switch r.Restart(ctx, target, reason, wave) {
		case OutcomeRestarted:
			result.Restarted = append(result.Restarted, target)
		case OutcomeSkipped:
			result.Skipped = append(result.Skipped, target)
		case OutcomeFailed:
			result.Failed = append(result.Failed, target)
		}
	}
	return result
}

// LastWave returns the wave id of the most recent issued restart for
// workload. It implements watcher.WaveSource.
func (r *Restarter) LastWave(workload string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, known := r.ledger[workload]
	if !known || entry.Wave == "" {
		return "", false
	}
	return entry.Wave, true
}

// Ledger returns a snapshot of the per-workload restart ledger.
func (r *Restarter) Ledger() map[string]LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[string]LedgerEntry, len(r.ledger))
	for workload, entry := range r.ledger {
		snapshot[workload] = entry
	}
	return snapshot
}

// restartPatch builds the strategic merge patch that touches only the
// controller-owned pod-template annotations.
func restartPatch(timestamp, reason, wave string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"annotations": map[string]string{
						annotations.LastRestart:   timestamp,
						annotations.RestartReason: reason,
						annotations.Wave:          wave,
					},
				},
			},
		},
	})
}
