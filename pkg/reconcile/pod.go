// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"fmt"

	"github.com/pkg/errors"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/jdrupes-go/vmoperator/pkg/resources"
)

// PodReconciler creates, applies, or deletes the runner pod according to
// the VM's requested state (spec.md §4.10).
type PodReconciler struct{}

// NewPodReconciler builds a PodReconciler.
func NewPodReconciler() *PodReconciler {
	return &PodReconciler{}
}

func (r *PodReconciler) Reconcile(rc *Context) error {
	if rc.UsingSts {
		return nil // a legacy StatefulSet still owns this VM's pod lifecycle.
	}

	name := resources.RunnerPodName(rc.Vm)
	existing, err := rc.Client.CoreV1().Pods(rc.Vm.Namespace).Get(rc.Ctx, name, metav1.GetOptions{})
	podExists := err == nil
	if err != nil && !k8serrors.IsNotFound(err) {
		return errors.Wrap(err, "reading runner pod")
	}

	if rc.Vm.Spec.Vm.State == "Stopped" {
		if !podExists {
			return nil
		}
		if err := rc.Client.CoreV1().Pods(rc.Vm.Namespace).Delete(rc.Ctx, name, metav1.DeleteOptions{}); err != nil && !k8serrors.IsNotFound(err) {
			return errors.Wrap(err, "deleting runner pod")
		}
		return nil
	}

	if podExists && existing.Status.Phase == "Running" {
		return nil
	}

	pod := resources.NewRunnerPod(rc.Vm, r.buildInput(rc))
	pod.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"}
	data, err := applyDocument(pod)
	if err != nil {
		return err
	}
	_, err = rc.Client.CoreV1().Pods(rc.Vm.Namespace).Patch(rc.Ctx, name, types.ApplyPatchType, data, applyPatchOptions())
	if err != nil {
		return errors.Wrap(err, "applying runner pod")
	}
	return nil
}

// buildInput assembles the volumes the pod needs from the VM spec and
// the PVC names the PVC sub-reconciler cached on the channel earlier
// this dispatch.
func (r *PodReconciler) buildInput(rc *Context) resources.PodSpecInput {
	known, _ := rc.Channel.Associated(associatedPVCNamesKey)
	knownNames, _ := known.(map[string]bool)

	in := resources.PodSpecInput{
		Image:           rc.Config.Reconciler.RunnerImage,
		RunnerDataClaim: resources.RunnerDataPVCName(rc.Vm),
		ConfigMapName:   resources.RunnerConfigMapName(rc.Vm),
		CloudInitMeta:   rc.Vm.Spec.CloudInit.MetaData,
		CPUOvercommit:   rc.Config.Reconciler.CPUOvercommit,
		RAMOvercommit:   rc.Config.Reconciler.RAMOvercommit,
	}
	if legacy := resources.LegacyRunnerDataPVCName(rc.Vm); knownNames[legacy] {
		in.RunnerDataClaim = legacy
	}
	if rc.Vm.Spec.Vm.Display.Spice.GenerateSecret {
		in.DisplaySecret = resources.DisplaySecretName(rc.Vm)
	}

	for i, disk := range rc.Vm.Spec.Vm.Disks {
		switch {
		case disk.Cdrom != nil:
			in.CdromImages = append(in.CdromImages, disk.Cdrom.Image)
		case disk.VolumeClaimTemplate != nil:
			diskName := disk.VolumeClaimTemplate.Name
			if diskName == "" {
				diskName = fmt.Sprintf("disk-%d", i)
			}
			name := resources.DiskPVCName(rc.Vm, resources.GeneratedDiskName(diskName))
			if legacy := resources.LegacyDiskName(rc.Vm, diskName); knownNames[legacy] {
				name = legacy
			}
			in.DiskClaims = append(in.DiskClaims, resources.DiskVolume{ClaimName: name, Device: diskName})
		}
	}
	return in
}
