// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package resources builds the Kubernetes child-object documents (server-
// side-apply and owner-reference decorated) that the Reconciler's
// sub-reconcilers apply: config maps, display secrets, PVCs, runner pods
// and load-balancer services.
package resources

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

// MetaLabels returns the common app.kubernetes.io labels every child
// resource of vm carries, plus the component label identifying which
// sub-reconciler owns the resource.
func MetaLabels(vm *vmoperatorv1.VirtualMachine, component string) map[string]string {
	return map[string]string{
		constants.LabelName:      constants.AppName,
		constants.LabelInstance:  vm.Name,
		constants.LabelManagedBy: constants.OperatorName,
		constants.LabelComponent: component,
	}
}

// OwnerReferences returns the single controller owner reference back to
// vm, so that deleting a VirtualMachine cascades to every child this
// package builds.
func OwnerReferences(vm *vmoperatorv1.VirtualMachine) []metav1.OwnerReference {
	return []metav1.OwnerReference{
		*metav1.NewControllerRef(vm, vmoperatorv1.SchemeGroupVersion.WithKind("VirtualMachine")),
	}
}

// MergeOverrides applies a VM-local override map on top of a base map,
// following the explicit-null-means-remove convention spec.md §4.6 uses
// for per-VM load-balancer label/annotation overrides: a key present with
// an empty string value is dropped from the result rather than merged in.
func MergeOverrides(base, override map[string]string) map[string]string {
	result := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if v == "" {
			delete(result, k)
			continue
		}
		result[k] = v
	}
	return result
}
