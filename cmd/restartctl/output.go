package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/yaml"
)

// TreeResult is the result of a tree command.
type TreeResult struct {
	Namespace string              `json:"namespace"`
	Edges     map[string][]string `json:"edges"`
	// RestartSet is filled when a trigger workload was named.
	Trigger    string   `json:"trigger,omitempty"`
	RestartSet []string `json:"restartSet,omitempty"`
}

// WorkloadStatus describes one managed Deployment.
type WorkloadStatus struct {
	Name        string `json:"name"`
	Parent      string `json:"parent,omitempty"`
	LastRestart string `json:"lastRestart,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Wave        string `json:"wave,omitempty"`
}

// StatusResult is the result of a status command.
type StatusResult struct {
	Namespace string           `json:"namespace"`
	Workloads []WorkloadStatus `json:"workloads"`
	Total     int              `json:"total"`
}

// RestartResult is the result of a restart command.
type RestartResult struct {
	Namespace string   `json:"namespace"`
	Trigger   string   `json:"trigger"`
	Wave      string   `json:"wave"`
	Restarted []string `json:"restarted"`
	Skipped   []string `json:"skipped,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// getClientFunc is the function used to create a Kubernetes client.
// It can be overridden in tests to inject a fake client.
var getClientFunc = defaultGetClient

// getClient creates a Kubernetes client.
func getClient() (kubernetes.Interface, error) {
	return getClientFunc()
}

func defaultGetClient() (kubernetes.Interface, error) {
	// Use in-cluster config or kubeconfig
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		rules,
		&clientcmd.ConfigOverrides{},
	).ClientConfig()
	if err != nil {
		return nil, err
	}

	return kubernetes.NewForConfig(config)
}

// outputResult outputs the result in the specified format.
func outputResult(result interface{}, format string) error {
	switch format {
	case "json":
		return outputJSON(result)
	case "yaml":
		return outputYAML(result)
	default:
		return outputTable(result)
	}
}

func outputJSON(result interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputYAML(result interface{}) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func outputTable(result interface{}) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := result.(type) {
	case TreeResult:
		return outputTreeTable(w, r)
	case StatusResult:
		return outputStatusTable(w, r)
	case RestartResult:
		return outputRestartTable(w, r)
	default:
		// Fall back to JSON for unknown types
		return outputJSON(result)
	}
}

func outputTreeTable(w *tabwriter.Writer, r TreeResult) error {
	fmt.Fprintf(w, "NAMESPACE\t%s\n\n", r.Namespace)

	fmt.Fprintln(w, "PARENT\tCHILDREN")
	parents := make([]string, 0, len(r.Edges))
	for parent := range r.Edges {
		parents = append(parents, parent)
	}
	sort.Strings(parents)
	for _, parent := range parents {
		for _, child := range r.Edges[parent] {
			fmt.Fprintf(w, "%s\t%s\n", parent, child)
		}
	}

	if r.Trigger != "" {
		fmt.Fprintf(w, "\nRESTART SET OF %s:\n", r.Trigger)
		if len(r.RestartSet) == 0 {
			fmt.Fprintln(w, "(none)")
		}
		for _, workload := range r.RestartSet {
			fmt.Fprintf(w, "- %s\n", workload)
		}
	}

	return nil
}

func outputStatusTable(w *tabwriter.Writer, r StatusResult) error {
	fmt.Fprintf(w, "NAMESPACE\t%s\n", r.Namespace)
	fmt.Fprintf(w, "MANAGED\t%d\n\n", r.Total)

	fmt.Fprintln(w, "NAME\tPARENT\tLAST RESTART\tWAVE\tREASON")
	for _, workload := range r.Workloads {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			workload.Name, workload.Parent, workload.LastRestart, workload.Wave, workload.Reason)
	}

	return nil
}

func outputRestartTable(w *tabwriter.Writer, r RestartResult) error {
	fmt.Fprintf(w, "TRIGGER\t%s\n", r.Trigger)
	fmt.Fprintf(w, "WAVE\t%s\n\n", r.Wave)

	for _, name := range r.Restarted {
		fmt.Fprintf(w, "restarted\t%s\n", name)
	}
	for _, name := range r.Skipped {
		fmt.Fprintf(w, "skipped\t%s\n", name)
	}
	for _, name := range r.Failed {
		fmt.Fprintf(w, "failed\t%s\n", name)
	}

	return nil
}
