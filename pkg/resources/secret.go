// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package resources

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

// DisplaySecretName is the name of the SPICE display-access secret for vm.
func DisplaySecretName(vm *vmoperatorv1.VirtualMachine) string {
	return vm.Name + "-display-secret"
}

// NewDisplaySecret builds the display-access Secret, storing the
// password in plain text under "password" since the runner must be able
// to read it back for SPICE authentication (util/security.GeneratePassword
// intentionally does not hash it).
func NewDisplaySecret(vm *vmoperatorv1.VirtualMachine, password string, expiry string) *corev1.Secret {
	return &corev1.Secret{
		Type: corev1.SecretTypeOpaque,
		ObjectMeta: metav1.ObjectMeta{
			Name:            DisplaySecretName(vm),
			Namespace:       vm.Namespace,
			Labels:          MetaLabels(vm, constants.ComponentDisplaySecret),
			OwnerReferences: OwnerReferences(vm),
		},
		Data: map[string][]byte{
			"password": []byte(password),
			"expiry":   []byte(expiry),
		},
	}
}
