package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/WiredSharp/restart-controller/internal/controller"
	"github.com/WiredSharp/restart-controller/internal/tree"
)

func treeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [workload]",
		Short: "Show the dependency tree declared by parent annotations",
		Long: `Show the dependency tree the controller acts on.

With a workload argument, also show the set of deployments a change to that
workload would restart.

Examples:
  # Show the whole tree
  restartctl tree -n my-namespace

  # Show what a change to db would restart
  restartctl tree -n my-namespace db`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTree,
	}

	return cmd
}

func runTree(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	built, err := buildTree(context.Background(), client, namespace)
	if err != nil {
		return err
	}

	result := TreeResult{
		Namespace: namespace,
		Edges:     built.Edges(),
	}
	if result.Edges == nil {
		result.Edges = map[string][]string{}
	}
	if len(args) == 1 {
		result.Trigger = args[0]
		result.RestartSet = built.RestartSet(args)
	}

	return outputResult(result, outputFmt)
}

// buildTree rebuilds the controller's dependency tree from the parent
// annotations of the namespace's Deployments. Cyclic declarations are
// reported, not silently dropped.
func buildTree(ctx context.Context, client kubernetes.Interface, namespace string) (*tree.Tree, error) {
	deployments, err := client.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	built := tree.New()
	for parent, children := range controller.ParentEdges(deployments.Items) {
		if err := built.AddEdges(parent, children); err != nil {
			return nil, fmt.Errorf("invalid dependency declaration for parent %q: %w", parent, err)
		}
	}
	return built, nil
}
