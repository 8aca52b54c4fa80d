// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package manager

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	apiextensionsclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

// crdChecker confirms the VirtualMachine CRD is registered with the API
// server, the same signal the upstream controller's IsHealthy folds
// into its own readiness check.
type crdChecker struct {
	client apiextensionsclient.Interface
}

func newCRDChecker(client apiextensionsclient.Interface) *crdChecker {
	return &crdChecker{client: client}
}

func (c *crdChecker) exists(ctx context.Context) bool {
	if c == nil || c.client == nil {
		return true
	}
	crd, err := c.client.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, constants.CRDNameVirtualMachine, metav1.GetOptions{})
	if err != nil {
		return false
	}
	return crd.Name == constants.CRDNameVirtualMachine
}
