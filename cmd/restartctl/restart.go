package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/rand"

	"github.com/WiredSharp/restart-controller/internal/restarter"
	"github.com/WiredSharp/restart-controller/internal/tree"
)

func restartCmd() *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:   "restart <deployment>",
		Short: "Force a rollout restart of a deployment",
		Long: `Force a rollout restart by patching the deployment's pod-template
annotations, the same mutation the controller issues.

With --cascade, restart every dependent of the deployment instead of the
deployment itself.

Examples:
  # Restart one deployment
  restartctl restart -n my-namespace api

  # Restart everything depending on db
  restartctl restart -n my-namespace db --cascade`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestart(args[0], cascade)
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "Restart the deployment's dependents instead of the deployment itself")

	return cmd
}

// staticTree satisfies restarter.TreeSource with a tree built once from
// cluster state.
type staticTree struct {
	tree *tree.Tree
}

func (s staticTree) Current() *tree.Tree { return s.tree }

func runRestart(workload string, cascade bool) error {
	client, err := getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	ctx := context.Background()
	reason := "manual restart via restartctl"

	if !cascade {
		r := restarter.New(client, namespace, nil, zap.NewNop(), restarter.DefaultOptions())
		wave := rand.String(8)
		if outcome := r.Restart(ctx, workload, reason, wave); outcome != restarter.OutcomeRestarted {
			return fmt.Errorf("failed to restart deployment %q", workload)
		}
		return outputResult(RestartResult{
			Namespace: namespace,
			Trigger:   workload,
			Wave:      wave,
			Restarted: []string{workload},
		}, outputFmt)
	}

	built, err := buildTree(ctx, client, namespace)
	if err != nil {
		return err
	}

	r := restarter.New(client, namespace, staticTree{built}, zap.NewNop(), restarter.DefaultOptions())
	result := r.Cascade(ctx, workload, reason)

	// All targets of one cascade share the wave stamp.
	wave := ""
	if len(result.Restarted) > 0 {
		wave = r.Ledger()[result.Restarted[0]].Wave
	}

	if err := outputResult(RestartResult{
		Namespace: namespace,
		Trigger:   workload,
		Wave:      wave,
		Restarted: result.Restarted,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
	}, outputFmt); err != nil {
		return err
	}

	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d restarts failed", len(result.Failed), result.Targets())
	}
	return nil
}
