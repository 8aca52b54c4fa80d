// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"context"

	"go.uber.org/zap"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/record"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/bus"
	"github.com/jdrupes-go/vmoperator/pkg/config"
)

// Context is everything a sub-reconciler needs: the VM being
// reconciled, its channel (for the PVC cache and resetCount bookkeeping
// spec.md §3 describes), the Kubernetes client, operator configuration
// and an event recorder for user-visible transitions (spec.md §6
// "Kubernetes Event resource").
type Context struct {
	Ctx      context.Context
	Vm       *vmoperatorv1.VirtualMachine
	Channel  *bus.VmChannel
	Client   kubernetes.Interface
	Dynamic  dynamic.Interface
	Config   *config.OperatorConfig
	Recorder record.EventRecorder
	Log      *zap.SugaredLogger

	// AssignedPool is filled in by the manager from its pool snapshot
	// when it builds the Context, so sub-reconcilers never query pool
	// state directly.
	AssignedPool string

	// ResetCount is incremented in-memory by ResetVm and carried through
	// to the render model so the runner observes the bump via the config
	// map (spec.md §4.6 "ResetVm handling").
	ResetCount int

	// UsingSts is set by the StatefulSet-eviction sub-reconciler and read
	// by the Pod sub-reconciler to stay idle while a legacy StatefulSet
	// still owns the VM (spec.md §4.10, §4.12).
	UsingSts bool

	// RequestID correlates every log line a single dispatch emits, the
	// way the console UI's own request middleware tags its logs.
	RequestID string
}

const associatedPVCNamesKey = "reconcile.pvcNames"
const associatedUsingStsKey = "reconcile.usingSts"
