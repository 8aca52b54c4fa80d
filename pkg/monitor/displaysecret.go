// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package monitor

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/jdrupes-go/vmoperator/pkg/bus"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/observer"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var secretGVR = schema.GroupVersionResource{Version: "v1", Resource: "secrets"}

// DisplaySecretMonitor watches display-access secrets and, on any
// change, bumps an annotation on the runner pod to force a re-read of
// the mounted secret (spec.md §4.13). It uses the Channel Dictionary's
// read-only view solely to verify the VM still exists.
type DisplaySecretMonitor struct {
	client kubernetes.Interface
	dict   bus.Dictionary
	log    *zap.SugaredLogger

	obs *observer.Observer[*corev1.Secret]
}

// NewDisplaySecretMonitor builds a DisplaySecretMonitor over namespace.
func NewDisplaySecretMonitor(client kubernetes.Interface, dyn dynamic.Interface, namespace string, dict bus.Dictionary, log *zap.SugaredLogger) *DisplaySecretMonitor {
	sel := labels.Set{constants.LabelComponent: constants.ComponentDisplaySecret}.AsSelector().String()
	m := &DisplaySecretMonitor{client: client, dict: dict.ReadOnly(), log: log}
	m.obs = observer.New(dyn, secretGVR, namespace, sel, decodeSecret, log)
	return m
}

// Run watches display secrets until ctx is cancelled.
func (m *DisplaySecretMonitor) Run(ctx context.Context, errCh chan<- error) {
	events := make(chan observer.Event[*corev1.Secret], 64)
	go m.obs.Run(ctx, events, errCh)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handle(ctx, ev)
		}
	}
}

func (m *DisplaySecretMonitor) handle(ctx context.Context, ev observer.Event[*corev1.Secret]) {
	if ev.Type != observer.Added && ev.Type != observer.Modified {
		return
	}
	secret := ev.Object
	if secret == nil {
		return
	}
	vmName := secret.Labels[constants.LabelInstance]
	if vmName == "" {
		return
	}
	if _, ok := m.dict.Get(vmName); !ok {
		m.log.Debugw("display secret changed for an unknown VM, skipping annotation bump", "vm", vmName)
		return
	}

	podName := vmName // resources.RunnerPodName is the bare VM name.
	patch, err := json.Marshal(map[string]any{
		"metadata": map[string]any{
			"annotations": map[string]string{
				constants.AnnotationDisplaySecretVersion: secret.ResourceVersion,
			},
		},
	})
	if err != nil {
		m.log.Warnw("failed building display-secret annotation patch", "vm", vmName, "error", err)
		return
	}
	if _, err := m.client.CoreV1().Pods(secret.Namespace).Patch(ctx, podName, types.MergePatchType, patch, metav1.PatchOptions{FieldManager: constants.FieldManager}); err != nil {
		m.log.Debugw("failed patching runner pod with display-secret version, will retry on next change", "vm", vmName, "error", errors.Cause(err))
	}
}
