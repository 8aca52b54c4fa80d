// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"encoding/json"

	"github.com/pkg/errors"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/resources"
)

// StatefulSetReconciler evicts the StatefulSet a VM may still carry from
// before this rewrite moved runner ownership to a bare Pod (spec.md §9
// REDESIGN FLAG, §4.12). It never creates a StatefulSet.
type StatefulSetReconciler struct{}

// NewStatefulSetReconciler builds a StatefulSetReconciler.
func NewStatefulSetReconciler() *StatefulSetReconciler {
	return &StatefulSetReconciler{}
}

// Reconcile sets rc.UsingSts so the Pod sub-reconciler knows whether to
// stay idle this round.
func (r *StatefulSetReconciler) Reconcile(rc *Context) error {
	name := resources.RunnerPodName(rc.Vm) // the legacy StatefulSet shared the pod's name.
	sts, err := rc.Client.AppsV1().StatefulSets(rc.Vm.Namespace).Get(rc.Ctx, name, metav1.GetOptions{})
	if k8serrors.IsNotFound(err) {
		rc.UsingSts = false
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reading legacy statefulset")
	}

	if sts.Spec.Replicas != nil && *sts.Spec.Replicas == 0 {
		if err := rc.Client.AppsV1().StatefulSets(rc.Vm.Namespace).Delete(rc.Ctx, name, metav1.DeleteOptions{}); err != nil && !k8serrors.IsNotFound(err) {
			return errors.Wrap(err, "deleting scaled-down legacy statefulset")
		}
		rc.UsingSts = false
		return nil
	}

	rc.UsingSts = true
	if rc.Vm.Spec.Vm.State == "Stopped" {
		patch, err := json.Marshal(map[string]any{"spec": map[string]any{"replicas": 0}})
		if err != nil {
			return errors.Wrap(err, "marshalling statefulset scale-down patch")
		}
		_, err = rc.Client.AppsV1().StatefulSets(rc.Vm.Namespace).Patch(rc.Ctx, name, types.MergePatchType, patch, metav1.PatchOptions{FieldManager: constants.FieldManager})
		if err != nil {
			return errors.Wrap(err, "scaling down legacy statefulset")
		}
	}
	return nil
}
