// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/render"
	"github.com/jdrupes-go/vmoperator/pkg/resources"
)

// ConfigMapReconciler renders and applies the runner's config map on
// every reconcile, including ResetVm-only ones (spec.md §4.7).
type ConfigMapReconciler struct{}

// NewConfigMapReconciler builds a ConfigMapReconciler.
func NewConfigMapReconciler() *ConfigMapReconciler {
	return &ConfigMapReconciler{}
}

// Reconcile renders runnerConfig and server-side applies it. If the
// resulting resourceVersion changed and a runner pod already exists, the
// pod's cmVersion annotation is bumped so its mount reflects the new
// content without waiting for kubelet's periodic refresh.
func (r *ConfigMapReconciler) Reconcile(rc *Context) error {
	model := render.NewModel(rc.Vm, rc.AssignedPool, rc.ResetCount)
	rendered, err := render.RenderDefault(model)
	if err != nil {
		return errors.Wrap(err, "rendering runner config")
	}

	cm := resources.NewRunnerConfigMap(rc.Vm, rendered)
	cm.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"}
	data, err := applyDocument(cm)
	if err != nil {
		return err
	}

	applied, err := rc.Client.CoreV1().ConfigMaps(rc.Vm.Namespace).Patch(
		rc.Ctx, cm.Name, types.ApplyPatchType, data, applyPatchOptions())
	if err != nil {
		return errors.Wrap(err, "applying runner config map")
	}

	return r.bumpPodAnnotationIfChanged(rc, applied.ResourceVersion)
}

func (r *ConfigMapReconciler) bumpPodAnnotationIfChanged(rc *Context, resourceVersion string) error {
	cached, _ := rc.Channel.Associated(associatedCmVersionKey)
	if cached == resourceVersion {
		return nil
	}
	rc.Channel.SetAssociated(associatedCmVersionKey, resourceVersion)

	podName := resources.RunnerPodName(rc.Vm)
	if _, err := rc.Client.CoreV1().Pods(rc.Vm.Namespace).Get(rc.Ctx, podName, metav1.GetOptions{}); err != nil {
		return nil // pod does not exist yet; nothing to annotate.
	}

	patch := []byte(`{"metadata":{"annotations":{"` + constants.AnnotationConfigMapVersion + `":"` + resourceVersion + `"}}}`)
	_, err := rc.Client.CoreV1().Pods(rc.Vm.Namespace).Patch(rc.Ctx, podName, types.MergePatchType, patch, metav1.PatchOptions{FieldManager: constants.FieldManager})
	if err != nil {
		return errors.Wrap(err, "patching runner pod cmVersion annotation")
	}
	return nil
}

const associatedCmVersionKey = "reconcile.cmVersion"
