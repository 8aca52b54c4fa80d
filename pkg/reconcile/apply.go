// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"encoding/json"

	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

// applyPatchOptions is the metav1.PatchOptions every server-side apply
// in this package uses: the manager's stable field-manager identity,
// with force so the manager always wins a field-ownership conflict
// against itself (spec.md §5 "Kubernetes API discipline").
func applyPatchOptions() metav1.PatchOptions {
	force := true
	return metav1.PatchOptions{FieldManager: constants.FieldManager, Force: &force}
}

// applyDocument marshals obj (which must already carry TypeMeta, since
// server-side apply requires apiVersion/kind in the patch body) to the
// bytes a typed client's Patch(types.ApplyPatchType, ...) call expects.
func applyDocument(obj any) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling apply document")
	}
	return data, nil
}
