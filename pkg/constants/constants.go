// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package constants holds labels, annotations, and defaults shared
// across the manager's monitors and sub-reconcilers.
package constants

import "time"

// AppName is the literal app label value carried by every runner pod
// and its child resources.
const AppName = "vmrunner"

// OperatorName is the literal managed-by label value.
const OperatorName = "vmoperator"

// FieldManager is the server-side-apply field-manager identity used for
// every mutation the manager makes. The upstream Java implementation
// uses "kubernetes-java-kubectl-apply"; this rewrite uses its own.
const FieldManager = "vmoperator-manager"

// Label keys, following the app.kubernetes.io convention.
const (
	LabelName      = "app.kubernetes.io/name"
	LabelInstance  = "app.kubernetes.io/instance"
	LabelManagedBy = "app.kubernetes.io/managed-by"
	LabelComponent = "app.kubernetes.io/component"
)

// Component label values.
const (
	ComponentRunner        = "runner"
	ComponentDisk          = "disk"
	ComponentDisplaySecret = "display-secret"
	ComponentLoadBalancer  = "load-balancer"
)

// Annotation keys bumped to force the runner / kubelet to re-read mounted
// content without waiting for the periodic sync.
const (
	AnnotationConfigMapVersion    = "vmoperator.jdrupes.org/cmVersion"
	AnnotationDisplaySecretVersion = "vmoperator.jdrupes.org/dpVersion"
)

// ResyncPeriod is a periodic re-list interval. The Resource Observer
// does not use it: it re-lists only when its watch ends.
const ResyncPeriod = 30 * time.Second

// MinWatchRestartInterval is the minimum time between watch restarts
// enforced by the Resource Observer (spec.md §4.1, §5).
const MinWatchRestartInterval = 5 * time.Second

// ConsoleRequestTimeout bounds how long GetDisplaySecret waits for the
// runner to confirm a password rotation (spec.md §4.8).
const ConsoleRequestTimeout = 1500 * time.Millisecond

// PendingPodChangeTTL bounds how long a pod event may sit in the
// per-VM pending buffer before a VM is known (spec.md §3, §4.4).
const PendingPodChangeTTL = 15 * time.Minute

// StatusUpdateRetries is the retry budget on 409 Conflict during
// status subresource updates (spec.md §7, §9 Open Question — decided
// here at 3).
const StatusUpdateRetries = 3

// DefaultPasswordValidity is the default lifetime, in seconds, of a
// rotated display-secret password (spec.md §4.8, §6).
const DefaultPasswordValidity = 10

// DefaultRunnerImage is used when the operator configuration leaves
// reconciler.runnerImage unset.
const DefaultRunnerImage = "ghcr.io/jdrupes-go/vmrunner:latest"

// CRDNameVirtualMachine is the CustomResourceDefinition name the
// health check looks for, the same way the upstream controller
// confirms its CRD is registered before reporting healthy.
const CRDNameVirtualMachine = "virtualmachines.vmoperator.jdrupes.org"

// DefaultCPUOvercommit and DefaultRAMOvercommit are the manager's
// default scheduling overcommit ratios (spec.md §6).
const (
	DefaultCPUOvercommit = 2.0
	DefaultRAMOvercommit = 1.25
)

// RunnerDataPVCSuffix and legacy naming helpers.
const (
	RunnerDataPVCSuffix       = "runner-data"
	LegacyRunnerDataPVCSuffix = "runner-data-%s-0"
)
