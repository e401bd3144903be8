// Package controller wires the watchers, dependency tree, and restarter
// into the cascading-restart control loop.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/WiredSharp/restart-controller/internal/annotations"
	"github.com/WiredSharp/restart-controller/internal/owner"
	"github.com/WiredSharp/restart-controller/internal/restarter"
	"github.com/WiredSharp/restart-controller/internal/tree"
	"github.com/WiredSharp/restart-controller/internal/watcher"
)

// Options configures the Coordinator.
type Options struct {
	// Namespace is the single namespace the controller manages.
	// Default: "default".
	Namespace string

	// Cooldown is the minimum interval between two issued restarts of the
	// same workload. Default: 60 seconds.
	Cooldown time.Duration

	// ResyncInterval is how often the dependency tree is rebuilt from
	// cluster state independently of change signals. Default: 5 minutes.
	ResyncInterval time.Duration

	// SignalBuffer is the capacity of the shared signal channel.
	// Default: 256.
	SignalBuffer int

	// SignalsPerSecond bounds how fast change signals are acted on.
	// Default: 20/s with a burst of 40.
	SignalsPerSecond float64
	SignalBurst      int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Namespace:        "default",
		Cooldown:         60 * time.Second,
		ResyncInterval:   5 * time.Minute,
		SignalBuffer:     256,
		SignalsPerSecond: 20,
		SignalBurst:      40,
	}
}

// Coordinator owns the watch loops and routes change signals into cascades.
type Coordinator struct {
	logger    *zap.Logger
	client    kubernetes.Interface
	opts      Options
	resolver  *owner.Resolver
	restarter *restarter.Restarter
	signals   chan watcher.Signal
	limiter   *rate.Limiter

	mu   sync.RWMutex
	tree *tree.Tree
}

// New creates a Coordinator and its resolver and restarter.
func New(client kubernetes.Interface, logger *zap.Logger, opts Options) *Coordinator {
	defaults := DefaultOptions()
	if opts.Namespace == "" {
		opts.Namespace = defaults.Namespace
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = defaults.Cooldown
	}
	if opts.ResyncInterval == 0 {
		opts.ResyncInterval = defaults.ResyncInterval
	}
	if opts.SignalBuffer == 0 {
		opts.SignalBuffer = defaults.SignalBuffer
	}
	if opts.SignalsPerSecond == 0 {
		opts.SignalsPerSecond = defaults.SignalsPerSecond
	}
	if opts.SignalBurst == 0 {
		opts.SignalBurst = defaults.SignalBurst
	}

	c := &Coordinator{
		logger:  logger.Named("coordinator"),
		client:  client,
		opts:    opts,
		signals: make(chan watcher.Signal, opts.SignalBuffer),
		limiter: rate.NewLimiter(rate.Limit(opts.SignalsPerSecond), opts.SignalBurst),
		tree:    tree.New(),
	}
	c.resolver = owner.New(client, opts.Namespace, logger)
	c.restarter = restarter.New(client, opts.Namespace, c, logger,
		restarter.Options{Cooldown: opts.Cooldown})
	return c
}

// Current returns the tree built from the most recent successful read of
// cluster state. It implements restarter.TreeSource.
func (c *Coordinator) Current() *tree.Tree {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree
}

// Restarter exposes the restart ledger for the debug API.
func (c *Coordinator) Restarter() *restarter.Restarter {
	return c.restarter
}

// Run builds the initial tree, starts both watch loops, and drains change
// signals until ctx is cancelled. An in-flight cascade runs to completion
// before shutdown.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("Starting coordinator",
		zap.String("namespace", c.opts.Namespace),
		zap.Duration("cooldown", c.opts.Cooldown),
		zap.Duration("resync_interval", c.opts.ResyncInterval))

	c.refreshTree(ctx)

	podWatcher := watcher.NewPodWatcher(c.client, c.opts.Namespace, c.resolver, c.signals, c.logger)
	deploymentWatcher := watcher.NewDeploymentWatcher(c.client, c.opts.Namespace, c.restarter, c.signals, c.logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = podWatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = deploymentWatcher.Run(ctx)
	}()

	ticker := time.NewTicker(c.opts.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			c.logger.Info("Coordinator stopped")
			return nil
		case <-ticker.C:
			c.refreshTree(ctx)
		case signal := <-c.signals:
			if !c.limiter.Allow() {
				c.logger.Warn("Signal rate limited",
					zap.String("deployment", signal.Workload),
					zap.String("source", signal.Source))
				continue
			}
			c.handleSignal(ctx, signal)
		}
	}
}

// handleSignal rebuilds the tree from live cluster state and cascades the
// restart to every dependent of the changed workload.
func (c *Coordinator) handleSignal(ctx context.Context, signal watcher.Signal) {
	c.logger.Info("Handling change",
		zap.String("deployment", signal.Workload),
		zap.String("source", signal.Source),
		zap.String("reason", signal.Reason))

	c.refreshTree(ctx)

	reason := fmt.Sprintf("parent %s changed: %s", signal.Workload, signal.Reason)
	result := c.restarter.Cascade(ctx, signal.Workload, reason)
	if result.Targets() == 0 {
		return
	}
	c.logger.Info("Cascade complete",
		zap.String("trigger", signal.Workload),
		zap.Int("restarted", len(result.Restarted)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)))
}

// refreshTree swaps in a freshly built tree; on a failed cluster read the
// previous tree stays in place.
func (c *Coordinator) refreshTree(ctx context.Context) {
	rebuilt, err := c.BuildTree(ctx)
	if err != nil {
		c.logger.Warn("Failed to rebuild dependency tree, keeping previous", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.tree = rebuilt
	c.mu.Unlock()
	c.logger.Debug("Dependency tree rebuilt", zap.Int("nodes", rebuilt.Len()))
}

// BuildTree constructs a dependency tree from the parent annotations of all
// Deployments in the namespace. A parent whose edges would close a cycle is
// logged and skipped; the rest of the tree stays usable.
func (c *Coordinator) BuildTree(ctx context.Context) (*tree.Tree, error) {
	deployments, err := c.client.AppsV1().Deployments(c.opts.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}

	built := tree.New()
	for parent, children := range ParentEdges(deployments.Items) {
		if err := built.AddEdges(parent, children); err != nil {
			c.logger.Error("Rejecting dependency edges",
				zap.String("parent", parent),
				zap.Strings("children", children),
				zap.Error(err))
		}
	}
	return built, nil
}

// ParentEdges extracts the declared parent -> children relation from the
// pod-template annotations of the given Deployments.
func ParentEdges(deployments []appsv1.Deployment) map[string][]string {
	edges := make(map[string][]string)
	for i := range deployments {
		deployment := &deployments[i]
		parent := deployment.Spec.Template.Annotations[annotations.Parent]
		if parent == "" {
			continue
		}
		edges[parent] = append(edges[parent], deployment.Name)
	}
	return edges
}
