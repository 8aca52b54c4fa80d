// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package resources

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
)

// RunnerConfigMapName is the name the runner expects its mounted
// configuration volume to carry: the bare VM name, matching the Pod's
// own name (spec.md §4.7, S1).
func RunnerConfigMapName(vm *vmoperatorv1.VirtualMachine) string {
	return vm.Name
}

// NewRunnerConfigMap builds the rendered runnerConfig document as a
// ConfigMap, the child the ConfigMap sub-reconciler server-side-applies
// on every reconcile (spec.md §4.4 "always runs").
func NewRunnerConfigMap(vm *vmoperatorv1.VirtualMachine, rendered string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:            RunnerConfigMapName(vm),
			Namespace:       vm.Namespace,
			Labels:          MetaLabels(vm, "runner-config"),
			OwnerReferences: OwnerReferences(vm),
		},
		Data: map[string]string{
			"config.yaml": rendered,
		},
	}
}
