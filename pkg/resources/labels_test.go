// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package resources

import (
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stretchr/testify/assert"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

func testVM(name string) *vmoperatorv1.VirtualMachine {
	return &vmoperatorv1.VirtualMachine{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "vms", UID: "abc-123"},
	}
}

func TestMetaLabels(t *testing.T) {
	vm := testVM("vm1")
	labels := MetaLabels(vm, constants.ComponentRunner)
	assert.Equal(t, constants.AppName, labels[constants.LabelName])
	assert.Equal(t, "vm1", labels[constants.LabelInstance])
	assert.Equal(t, constants.OperatorName, labels[constants.LabelManagedBy])
	assert.Equal(t, constants.ComponentRunner, labels[constants.LabelComponent])
}

func TestOwnerReferences(t *testing.T) {
	vm := testVM("vm1")
	refs := OwnerReferences(vm)
	if assert.Len(t, refs, 1) {
		assert.Equal(t, "vm1", refs[0].Name)
		assert.Equal(t, "VirtualMachine", refs[0].Kind)
		assert.True(t, *refs[0].Controller)
	}
}

func TestMergeOverrides(t *testing.T) {
	base := map[string]string{"keep": "1", "drop": "2"}
	override := map[string]string{"drop": "", "added": "3"}

	result := MergeOverrides(base, override)

	assert.Equal(t, map[string]string{"keep": "1", "added": "3"}, result)
	// base is untouched
	assert.Equal(t, "2", base["drop"])
}
