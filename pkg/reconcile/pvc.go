// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/resources"
)

// PVCReconciler reconciles the runner-data PVC and one PVC per declared
// disk, honoring legacy StatefulSet-era names and bound-PVC immutability
// (spec.md §4.9).
type PVCReconciler struct{}

// NewPVCReconciler builds a PVCReconciler.
func NewPVCReconciler() *PVCReconciler {
	return &PVCReconciler{}
}

func (r *PVCReconciler) Reconcile(rc *Context, specChanged bool) error {
	names, err := r.knownNames(rc, specChanged)
	if err != nil {
		return err
	}

	if err := r.reconcileRunnerData(rc, names, specChanged); err != nil {
		return err
	}

	for i, disk := range rc.Vm.Spec.Vm.Disks {
		if disk.VolumeClaimTemplate == nil {
			continue // a cdrom disk has nothing to reconcile.
		}
		if err := r.reconcileDisk(rc, names, i, disk.VolumeClaimTemplate, specChanged); err != nil {
			return err
		}
	}
	return nil
}

// knownNames returns the set of PVC names already known to belong to
// this VM, refreshing the cache stored on the channel on specChanged
// reconciles (spec.md §4.9 step 1).
func (r *PVCReconciler) knownNames(rc *Context, specChanged bool) (map[string]bool, error) {
	if !specChanged {
		if cached, ok := rc.Channel.Associated(associatedPVCNamesKey); ok {
			return cached.(map[string]bool), nil
		}
	}

	sel := labels.Set{constants.LabelManagedBy: constants.OperatorName, constants.LabelName: constants.AppName, constants.LabelInstance: rc.Vm.Name}.AsSelector().String()
	list, err := rc.Client.CoreV1().PersistentVolumeClaims(rc.Vm.Namespace).List(rc.Ctx, metav1.ListOptions{LabelSelector: sel})
	if err != nil {
		return nil, errors.Wrap(err, "listing known PVCs")
	}
	names := make(map[string]bool, len(list.Items))
	for _, pvc := range list.Items {
		names[pvc.Name] = true
	}
	rc.Channel.SetAssociated(associatedPVCNamesKey, names)
	return names, nil
}

func (r *PVCReconciler) reconcileRunnerData(rc *Context, known map[string]bool, specChanged bool) error {
	name := resources.RunnerDataPVCName(rc.Vm)
	if legacy := resources.LegacyRunnerDataPVCName(rc.Vm); known[legacy] {
		name = legacy
	}
	if !specChanged {
		return nil
	}
	pvc := resources.NewRunnerDataPVC(rc.Vm, name, rc.Config.Reconciler.RunnerDataPvcStorageClassName)
	pvc.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"}
	return r.apply(rc, pvc)
}

func (r *PVCReconciler) reconcileDisk(rc *Context, known map[string]bool, index int, template *corev1.PersistentVolumeClaim, specChanged bool) error {
	diskName := template.Name
	if diskName == "" {
		diskName = fmt.Sprintf("disk-%d", index)
	}
	name := resources.DiskPVCName(rc.Vm, resources.GeneratedDiskName(diskName))
	if legacy := resources.LegacyDiskName(rc.Vm, diskName); known[legacy] {
		name = legacy
	}

	existing, err := rc.Client.CoreV1().PersistentVolumeClaims(rc.Vm.Namespace).Get(rc.Ctx, name, metav1.GetOptions{})
	if err != nil && !k8serrors.IsNotFound(err) {
		return errors.Wrap(err, "reading disk PVC")
	}

	pvc := resources.NewDiskPVC(rc.Vm, name, template)
	pvc.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"}

	if err == nil && existing.Status.Phase == corev1.ClaimBound {
		return r.patchBoundPVC(rc, name, pvc)
	}
	if !specChanged && err == nil {
		return nil
	}
	return r.apply(rc, pvc)
}

// patchBoundPVC merge-patches only spec.resources of a Bound PVC, since
// most of the spec becomes immutable once bound (spec.md §4.9 step 3).
// spec.volumeAttributesClassName is not patched.
func (r *PVCReconciler) patchBoundPVC(rc *Context, name string, desired *corev1.PersistentVolumeClaim) error {
	patch, err := json.Marshal(map[string]any{
		"spec": map[string]any{
			"resources": desired.Spec.Resources,
		},
	})
	if err != nil {
		return errors.Wrap(err, "marshalling bound PVC patch")
	}
	_, err = rc.Client.CoreV1().PersistentVolumeClaims(rc.Vm.Namespace).Patch(rc.Ctx, name, types.MergePatchType, patch, metav1.PatchOptions{FieldManager: constants.FieldManager})
	if err != nil {
		return errors.Wrap(err, "patching bound PVC")
	}
	return nil
}

func (r *PVCReconciler) apply(rc *Context, pvc *corev1.PersistentVolumeClaim) error {
	data, err := applyDocument(pvc)
	if err != nil {
		return err
	}
	_, err = rc.Client.CoreV1().PersistentVolumeClaims(rc.Vm.Namespace).Patch(rc.Ctx, pvc.Name, types.ApplyPatchType, data, applyPatchOptions())
	if err != nil {
		return errors.Wrap(err, "applying PVC")
	}
	return nil
}
