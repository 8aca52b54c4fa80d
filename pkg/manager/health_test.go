// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package manager

import (
	"context"
	"testing"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsfake "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset/fake"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stretchr/testify/assert"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

func TestCRDCheckerExistsTrueWhenRegistered(t *testing.T) {
	crd := &apiextensionsv1.CustomResourceDefinition{
		ObjectMeta: metav1.ObjectMeta{Name: constants.CRDNameVirtualMachine},
	}
	client := apiextensionsfake.NewSimpleClientset(crd)

	checker := newCRDChecker(client)
	assert.True(t, checker.exists(context.Background()))
}

func TestCRDCheckerExistsFalseWhenMissing(t *testing.T) {
	client := apiextensionsfake.NewSimpleClientset()

	checker := newCRDChecker(client)
	assert.False(t, checker.exists(context.Background()))
}

func TestCRDCheckerExistsTrueWhenClientNil(t *testing.T) {
	checker := newCRDChecker(nil)
	assert.True(t, checker.exists(context.Background()))
}

func TestManagerHealthyFalseBeforeRun(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.Healthy(), "a manager that never ran Run is never healthy")
}

