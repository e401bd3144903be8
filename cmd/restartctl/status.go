package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/WiredSharp/restart-controller/internal/annotations"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show managed deployments and their last issued restarts",
		Long: `Show every deployment under restart management in the namespace,
with its declared parent and the annotations of the last issued restart.

Examples:
  # Show status
  restartctl status -n my-namespace

  # Output as JSON
  restartctl status -n my-namespace -o json`,
		RunE: runStatus,
	}

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	deployments, err := client.AppsV1().Deployments(namespace).List(context.Background(), metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list deployments: %w", err)
	}

	workloads := managedWorkloads(deployments.Items)
	result := StatusResult{
		Namespace: namespace,
		Workloads: workloads,
		Total:     len(workloads),
	}

	return outputResult(result, outputFmt)
}

// managedWorkloads extracts the controller-owned annotations of every managed
// Deployment, sorted by name.
func managedWorkloads(deployments []appsv1.Deployment) []WorkloadStatus {
	var workloads []WorkloadStatus
	for i := range deployments {
		template := deployments[i].Spec.Template.Annotations
		if !annotations.Managed(template) {
			continue
		}
		workloads = append(workloads, WorkloadStatus{
			Name:        deployments[i].Name,
			Parent:      template[annotations.Parent],
			LastRestart: template[annotations.LastRestart],
			Reason:      template[annotations.RestartReason],
			Wave:        template[annotations.Wave],
		})
	}
	sort.Slice(workloads, func(i, j int) bool { return workloads[i].Name < workloads[j].Name })
	return workloads
}
