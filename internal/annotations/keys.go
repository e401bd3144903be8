// Package annotations defines the annotation keys the restart controller
// reads from and writes to workload pod templates.
//
// All keys live on the pod-template metadata of a Deployment, never on the
// Deployment itself: writing them is what forces a rollout, and reading the
// parent declaration from the same place keeps the whole contract in one
// map.
package annotations

import "strings"

// Prefix namespaces every key the controller owns.
const Prefix = "restart-controller.io/"

const (
	// Parent declares the name of this workload's parent workload.
	// Absence means the workload has no parent.
	Parent = Prefix + "parent"

	// LastRestart is the RFC3339 timestamp of the most recent
	// controller-issued restart.
	LastRestart = Prefix + "last-restart"

	// RestartReason is the human-readable reason recorded with the last
	// restart.
	RestartReason = Prefix + "restart-reason"

	// Wave is the opaque per-cascade identifier stamped on every target of
	// one cascade. The drift detector uses it to recognize and suppress
	// self-inflicted template changes.
	Wave = Prefix + "wave"
)

// Managed reports whether the annotation map carries any controller-owned
// key, i.e. whether the object was ever placed under restart management.
func Managed(annotations map[string]string) bool {
	for k := range annotations {
		if strings.HasPrefix(k, Prefix) {
			return true
		}
	}
	return false
}
