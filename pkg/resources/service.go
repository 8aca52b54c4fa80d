// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package resources

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

// LoadBalancerServiceName is the name of a VM's display load-balancer
// Service.
func LoadBalancerServiceName(vm *vmoperatorv1.VirtualMachine) string {
	return vm.Name + "-display"
}

// NewLoadBalancerService builds the Service the Load-Balancer
// sub-reconciler applies, merging the operator-wide defaults with any
// per-VM label/annotation overrides (spec.md §4.4 "Load-Balancer",
// explicit-null-means-remove semantics via MergeOverrides).
func NewLoadBalancerService(vm *vmoperatorv1.VirtualMachine, defaultLabels, defaultAnnotations map[string]string) *corev1.Service {
	labels := MetaLabels(vm, constants.ComponentLoadBalancer)
	for k, v := range defaultLabels {
		labels[k] = v
	}
	annotations := map[string]string{}
	for k, v := range defaultAnnotations {
		annotations[k] = v
	}
	if vm.Spec.LoadBalancerService != nil {
		labels = MergeOverrides(labels, vm.Spec.LoadBalancerService.Labels)
		annotations = MergeOverrides(annotations, vm.Spec.LoadBalancerService.Annotations)
	}

	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:            LoadBalancerServiceName(vm),
			Namespace:       vm.Namespace,
			Labels:          labels,
			Annotations:     annotations,
			OwnerReferences: OwnerReferences(vm),
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeLoadBalancer,
			Selector: map[string]string{constants.LabelInstance: vm.Name, constants.LabelComponent: constants.ComponentRunner},
			Ports: []corev1.ServicePort{
				{Name: "spice", Port: vm.Spec.Vm.Display.Spice.Port, TargetPort: intstr.FromInt(int(vm.Spec.Vm.Display.Spice.Port))},
			},
		},
	}
}

// LoadBalancerEnabled reports whether a VM gets a load-balancer Service:
// the operator-wide default, unless the VM overrides it. An explicit
// Enabled wins; an empty per-VM spec (all fields nil) opts out.
func LoadBalancerEnabled(vm *vmoperatorv1.VirtualMachine, operatorDefault bool) bool {
	lb := vm.Spec.LoadBalancerService
	if lb == nil {
		return operatorDefault
	}
	if lb.Enabled != nil {
		return *lb.Enabled
	}
	if len(lb.Labels) == 0 && len(lb.Annotations) == 0 {
		return false
	}
	return operatorDefault
}
