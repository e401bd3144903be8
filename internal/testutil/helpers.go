// Package testutil provides shared fixture builders for restart-controller
// tests: Deployments with parent annotations, pods with restart counts, and
// the ReplicaSets linking them.
package testutil

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/WiredSharp/restart-controller/internal/annotations"
)

// Deployment builds a Deployment whose pod template declares parent via the
// restart-controller annotation. Empty parent means no annotation (the
// workload is a root or unmanaged).
func Deployment(namespace, name, parent string) *appsv1.Deployment {
	templateAnnotations := map[string]string{}
	if parent != "" {
		templateAnnotations[annotations.Parent] = parent
	}
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels:      map[string]string{"app": name},
					Annotations: templateAnnotations,
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{Name: "main", Image: name + ":v1"},
					},
				},
			},
		},
	}
}

// ReplicaSet builds a ReplicaSet owned by the named Deployment. Empty
// deployment means an orphan ReplicaSet with no owner references.
func ReplicaSet(namespace, name, deployment string) *appsv1.ReplicaSet {
	rs := &appsv1.ReplicaSet{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
	}
	if deployment != "" {
		rs.OwnerReferences = []metav1.OwnerReference{
			{APIVersion: "apps/v1", Kind: "Deployment", Name: deployment},
		}
	}
	return rs
}

// Pod builds a pod owned by the named ReplicaSet with one container status
// per restart count. Empty replicaSet means no owner references; no restart
// counts means no container statuses (a pod not yet scheduled).
func Pod(namespace, name, replicaSet string, restarts ...int32) *corev1.Pod {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
	}
	if replicaSet != "" {
		pod.OwnerReferences = []metav1.OwnerReference{
			{APIVersion: "apps/v1", Kind: "ReplicaSet", Name: replicaSet},
		}
	}
	for _, count := range restarts {
		pod.Status.ContainerStatuses = append(pod.Status.ContainerStatuses,
			corev1.ContainerStatus{RestartCount: count})
	}
	return pod
}
