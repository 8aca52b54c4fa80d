// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package reconcile implements the Reconciler dispatcher and its six
// sub-reconcilers (spec.md §4.6-§4.12): the component that turns a
// VmResourceChanged notification into server-side-applied Kubernetes
// child resources.
package reconcile

import (
	"time"

	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

// statusUpdateBackoff bounds a status-subresource compare-and-update to
// constants.StatusUpdateRetries attempts on 409 Conflict (spec.md §5
// "Kubernetes API discipline", §9 Open Question).
var statusUpdateBackoff = wait.Backoff{
	Steps:    constants.StatusUpdateRetries,
	Duration: 10 * time.Millisecond,
	Factor:   2.0,
}

// RetryOnConflict re-reads and retries fn up to the configured budget
// whenever it returns a 409 Conflict, matching the compare-and-update
// pattern every status mutation in this package follows.
func RetryOnConflict(fn func() error) error {
	return retry.OnError(statusUpdateBackoff, errors.IsConflict, fn)
}
