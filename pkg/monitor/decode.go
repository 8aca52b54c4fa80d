// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package monitor

import (
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
)

// decodeVirtualMachine is the observer.Decoder for VM CRs.
func decodeVirtualMachine(u *unstructured.Unstructured) (*vmoperatorv1.VirtualMachine, error) {
	vm := &vmoperatorv1.VirtualMachine{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, vm); err != nil {
		return nil, errors.Wrap(err, "decoding VirtualMachine")
	}
	return vm, nil
}

// decodeVmPool is the observer.Decoder for VmPool CRs.
func decodeVmPool(u *unstructured.Unstructured) (*vmoperatorv1.VmPool, error) {
	pool := &vmoperatorv1.VmPool{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, pool); err != nil {
		return nil, errors.Wrap(err, "decoding VmPool")
	}
	return pool, nil
}

// decodePod is the observer.Decoder for runner Pods.
func decodePod(u *unstructured.Unstructured) (*corev1.Pod, error) {
	pod := &corev1.Pod{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, pod); err != nil {
		return nil, errors.Wrap(err, "decoding Pod")
	}
	return pod, nil
}

// decodeSecret is the observer.Decoder for display-access Secrets.
func decodeSecret(u *unstructured.Unstructured) (*corev1.Secret, error) {
	secret := &corev1.Secret{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, secret); err != nil {
		return nil, errors.Wrap(err, "decoding Secret")
	}
	return secret, nil
}
