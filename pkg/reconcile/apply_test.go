// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"encoding/json"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

func TestApplyPatchOptionsForcesFieldManager(t *testing.T) {
	opts := applyPatchOptions()
	assert.Equal(t, constants.FieldManager, opts.FieldManager)
	require.NotNil(t, opts.Force)
	assert.True(t, *opts.Force)
}

func TestApplyDocumentMarshalsObject(t *testing.T) {
	pod := &corev1.Pod{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{Name: "vm1-runner"},
	}

	data, err := applyDocument(pod)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Pod", decoded["kind"])
	assert.Equal(t, "v1", decoded["apiVersion"])
}
