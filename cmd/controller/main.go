// Command controller runs the cascading-restart controller for a single
// namespace.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/WiredSharp/restart-controller/internal/api"
	"github.com/WiredSharp/restart-controller/internal/controller"
)

// runConfig holds parsed configuration for the controller.
type runConfig struct {
	Namespace          string
	MetricsBindAddress string
	Cooldown           time.Duration
	ResyncInterval     time.Duration
	Kubeconfig         string
}

func main() {
	cfg := runConfig{}
	flag.StringVar(&cfg.MetricsBindAddress, "metrics-bind-address", ":8080", "Address for metrics and debug endpoints")
	flag.DurationVar(&cfg.Cooldown, "cooldown", 60*time.Second, "Minimum interval between restarts of the same deployment")
	flag.DurationVar(&cfg.ResyncInterval, "resync-interval", 5*time.Minute, "How often the dependency tree is rebuilt from cluster state")
	flag.StringVar(&cfg.Kubeconfig, "kubeconfig", "", "Path to a kubeconfig file (used when not running in-cluster)")
	flag.Parse()

	cfg.Namespace = "default"
	if flag.NArg() > 0 {
		cfg.Namespace = flag.Arg(0)
	}

	// Setup logger
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := logConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Controller error", zap.Error(err))
	}
}

// run contains the main application logic, separated from main() for testability.
func run(cfg runConfig, logger *zap.Logger) error {
	logger.Info("Starting restart controller",
		zap.String("namespace", cfg.Namespace),
		zap.String("metrics_bind_address", cfg.MetricsBindAddress),
		zap.Duration("cooldown", cfg.Cooldown),
	)

	config, err := clusterConfig(cfg.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to get Kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	return start(cfg, clientset, logger)
}

// clusterConfig prefers in-cluster credentials and falls back to kubeconfig
// for local runs.
func clusterConfig(kubeconfig string) (*rest.Config, error) {
	config, err := rest.InClusterConfig()
	if err == nil {
		return config, nil
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// start wires the coordinator and the metrics server. It blocks until a
// shutdown signal arrives. Extracted from run() to allow testing with a fake
// clientset.
func start(cfg runConfig, clientset kubernetes.Interface, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coordinator := controller.New(clientset, logger, controller.Options{
		Namespace:      cfg.Namespace,
		Cooldown:       cfg.Cooldown,
		ResyncInterval: cfg.ResyncInterval,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	api.RegisterHandlers(mux, coordinator, coordinator.Restarter(), logger)

	server := &http.Server{
		Addr:              cfg.MetricsBindAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics and debug endpoints",
			zap.String("addr", cfg.MetricsBindAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- coordinator.Run(ctx)
	}()

	select {
	case err := <-serverErr:
		cancel()
		<-runErr
		return fmt.Errorf("metrics server: %w", err)
	case err := <-runErr:
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
		logger.Info("Controller stopped")
		return err
	}
}
