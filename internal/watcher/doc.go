// Package watcher turns raw Kubernetes watch streams into deduplicated
// logical "workload changed" signals.
//
// # Contract
//
// A Watcher runs one watch stream with automatic reconnect and feeds every
// event through a reducer. The reducer owns private per-identity state and
// decides whether the event is a genuine state transition; replayed or
// initial-snapshot state never produces a signal. Signals are emitted on a
// shared channel for the coordinator to act on; reducers never mutate the
// dependency tree or issue restarts themselves.
//
// Two reducers exist:
//
//   - the pod reducer tracks per-pod aggregate container restart counts and
//     signals the owning Deployment when the count increases (or when a
//     managed pod is deleted);
//   - the drift reducer fingerprints Deployment pod templates and signals
//     when a managed template changes, unless the change carries the wave
//     stamp of the orchestrator's own most recent restart (self-inflicted
//     changes are suppressed).
//
// Watch-stream termination is retryable: the loop reconnects after a short
// delay and resumes. Only context cancellation stops a Watcher, and an
// in-flight event reduction runs to completion first.
package watcher
