package watcher

import (
	"context"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/watch"
)

const defaultRetryDelay = 5 * time.Second

// Signal names a workload whose state genuinely changed.
type Signal struct {
	Workload string
	Reason   string
	Source   string
}

// Signal sources.
const (
	SourcePods        = "pods"
	SourceDeployments = "deployments"
)

// reducerFunc interprets one watch event against private reducer state and
// returns a signal plus whether to emit it.
type reducerFunc func(ctx context.Context, event watch.Event) (Signal, bool)

// watchFunc opens a new watch stream.
type watchFunc func(ctx context.Context) (watch.Interface, error)

// Watcher drives one resource-kind watch stream through a reducer.
type Watcher struct {
	logger     *zap.Logger
	source     string
	signals    chan<- Signal
	open       watchFunc
	reduce     reducerFunc
	retryDelay time.Duration
}

func newWatcher(source string, signals chan<- Signal, open watchFunc, reduce reducerFunc, logger *zap.Logger) *Watcher {
	return &Watcher{
		logger:     logger.Named(source + "-watcher"),
		source:     source,
		signals:    signals,
		open:       open,
		reduce:     reduce,
		retryDelay: defaultRetryDelay,
	}
}

// Run watches until ctx is cancelled, reconnecting whenever the stream ends
// or fails. Always returns nil: stream errors are retryable by contract.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("Starting watcher")
	for {
		err := w.watchOnce(ctx)
		if ctx.Err() != nil {
			w.logger.Info("Watcher stopped")
			return nil
		}
		if err != nil {
			w.logger.Error("Watch failed, reconnecting", zap.Error(err))
		} else {
			w.logger.Debug("Watch stream closed, reconnecting")
		}
		reconnectsTotal.WithLabelValues(w.source).Inc()

		select {
		case <-ctx.Done():
			w.logger.Info("Watcher stopped")
			return nil
		case <-time.After(w.retryDelay):
		}
	}
}

// watchOnce consumes a single watch stream until it ends.
func (w *Watcher) watchOnce(ctx context.Context) error {
	stream, err := w.open(ctx)
	if err != nil {
		return err
	}
	defer stream.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-stream.ResultChan():
			if !ok {
				return nil
			}
			signal, emit := w.reduce(ctx, event)
			if !emit {
				continue
			}
			signalsTotal.WithLabelValues(w.source).Inc()
			select {
			case w.signals <- signal:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
