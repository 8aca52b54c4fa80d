// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/jdrupes-go/vmoperator/pkg/resources"
)

// LoadBalancerReconciler applies the display-access load-balancer
// Service, honoring the operator-wide default and any per-VM override
// (spec.md §4.11).
type LoadBalancerReconciler struct{}

// NewLoadBalancerReconciler builds a LoadBalancerReconciler.
func NewLoadBalancerReconciler() *LoadBalancerReconciler {
	return &LoadBalancerReconciler{}
}

func (r *LoadBalancerReconciler) Reconcile(rc *Context) error {
	defaults := rc.Config.Reconciler.LoadBalancerService
	if !resources.LoadBalancerEnabled(rc.Vm, defaults.Enabled) {
		return nil
	}

	svc := resources.NewLoadBalancerService(rc.Vm, defaults.Labels, defaults.Annotations)
	svc.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Service"}
	data, err := applyDocument(svc)
	if err != nil {
		return err
	}
	_, err = rc.Client.CoreV1().Services(rc.Vm.Namespace).Patch(rc.Ctx, svc.Name, types.ApplyPatchType, data, applyPatchOptions())
	if err != nil {
		return errors.Wrap(err, "applying display load balancer service")
	}
	return nil
}
