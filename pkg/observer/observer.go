// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package observer implements the Resource Observer (spec.md §4.1): a
// generic, long-lived watch loop over a single (group, version, kind,
// namespace, label-selector) that restarts with backoff on any stream
// termination and emits typed change events.
//
// A single generic implementation, built on the dynamic/unstructured
// client, serves all four kinds of resources the manager watches (VM
// CRs, VmPool CRs, runner Pods, display Secrets), per spec.md §9's
// guidance to use the dynamic client for generically-watched objects.
package observer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/metricsexporter"
)

// EventType enumerates the kinds of change event an Observer emits.
type EventType string

// Event types, per spec.md §4.1.
const (
	Added    EventType = "ADDED"
	Modified EventType = "MODIFIED"
	Deleted  EventType = "DELETED"
	Bookmark EventType = "BOOKMARK"
	ErrorEvt EventType = "ERROR"
)

// Event is one typed change observed for a resource of type T.
type Event[T any] struct {
	Type   EventType
	Object T
	Err    error
}

// Decoder converts a raw unstructured object into the typed object an
// Observer's consumers want to see.
type Decoder[T any] func(*unstructured.Unstructured) (T, error)

// Observer watches a single (namespace, labelSelector) slice of one
// GroupVersionResource and publishes decoded Event[T] values on a
// channel until ctx is cancelled or a permanent failure occurs.
type Observer[T any] struct {
	client        dynamic.Interface
	gvr           schema.GroupVersionResource
	namespace     string
	labelSelector string
	decode        Decoder[T]
	log           *zap.SugaredLogger

	// getByName re-fetches a single object when a watch event arrives
	// with an empty payload (spec.md §4.1 "ADDED payloads" note). New
	// sets it for every Observer, namespaced or cluster-scoped.
	getByName func(ctx context.Context, name string) (*unstructured.Unstructured, error)
}

// New builds an Observer for the given resource coordinates.
func New[T any](client dynamic.Interface, gvr schema.GroupVersionResource, namespace, labelSelector string, decode Decoder[T], log *zap.SugaredLogger) *Observer[T] {
	o := &Observer[T]{
		client:        client,
		gvr:           gvr,
		namespace:     namespace,
		labelSelector: labelSelector,
		decode:        decode,
		log:           log,
	}
	o.getByName = func(ctx context.Context, name string) (*unstructured.Unstructured, error) {
		return o.iface().Get(ctx, name, metav1.GetOptions{})
	}
	return o
}

func (o *Observer[T]) iface() dynamic.ResourceInterface {
	if o.namespace == "" {
		return o.client.Resource(o.gvr)
	}
	return o.client.Resource(o.gvr).Namespace(o.namespace)
}

// Run lists then watches the resource, restarting on any termination
// (EOF, HTTP error, decode error) no sooner than
// constants.MinWatchRestartInterval after the previous attempt began.
// A permanent failure (authorization, missing CRD) is sent on errCh and
// Run returns.
func (o *Observer[T]) Run(ctx context.Context, out chan<- Event[T], errCh chan<- error) {
	var lastResourceVersion string
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		if !first {
			metricsexporter.WatchRestarts.WithLabelValues(o.gvr.Resource).Inc()
		}
		first = false
		attemptStart := time.Now()
		rv, fatal := o.listAndEmit(ctx, out)
		if fatal != nil {
			select {
			case errCh <- fatal:
			case <-ctx.Done():
			}
			return
		}
		if rv != "" {
			lastResourceVersion = rv
		}

		fatal = o.watchAndEmit(ctx, lastResourceVersion, out)
		if fatal != nil {
			select {
			case errCh <- fatal:
			case <-ctx.Done():
			}
			return
		}

		o.waitForRestart(ctx, attemptStart)
	}
}

func (o *Observer[T]) waitForRestart(ctx context.Context, attemptStart time.Time) {
	elapsed := time.Since(attemptStart)
	if elapsed >= constants.MinWatchRestartInterval {
		return
	}
	select {
	case <-time.After(constants.MinWatchRestartInterval - elapsed):
	case <-ctx.Done():
	}
}

// listAndEmit performs the initial (or restart) list, emitting an
// Added event per item, and returns the resourceVersion to watch from.
// A non-nil returned error is permanent (CRD missing, forbidden).
func (o *Observer[T]) listAndEmit(ctx context.Context, out chan<- Event[T]) (string, error) {
	list, err := o.iface().List(ctx, metav1.ListOptions{LabelSelector: o.labelSelector})
	if err != nil {
		if errors.IsForbidden(err) || errors.IsNotFound(err) {
			return "", err
		}
		o.log.Debugw("transient error listing resource, will retry", "gvr", o.gvr.String(), "error", err)
		return "", nil
	}
	for i := range list.Items {
		item := list.Items[i]
		o.emitDecoded(ctx, Added, &item, out)
	}
	return list.GetResourceVersion(), nil
}

func (o *Observer[T]) watchAndEmit(ctx context.Context, resourceVersion string, out chan<- Event[T]) error {
	w, err := o.iface().Watch(ctx, metav1.ListOptions{
		LabelSelector:   o.labelSelector,
		ResourceVersion: resourceVersion,
		Watch:           true,
	})
	if err != nil {
		if errors.IsForbidden(err) || errors.IsNotFound(err) {
			return err
		}
		o.log.Debugw("transient error opening watch, will retry", "gvr", o.gvr.String(), "error", err)
		return nil
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.ResultChan():
			if !ok {
				return nil
			}
			o.handleWatchEvent(ctx, ev, out)
		}
	}
}

func (o *Observer[T]) handleWatchEvent(ctx context.Context, ev watch.Event, out chan<- Event[T]) {
	switch ev.Type {
	case watch.Added, watch.Modified, watch.Deleted:
		u, ok := ev.Object.(*unstructured.Unstructured)
		if !ok {
			o.log.Debugw("watch event had unexpected object type", "gvr", o.gvr.String())
			return
		}
		o.emitDecoded(ctx, toEventType(ev.Type), u, out)
	case watch.Bookmark:
		o.send(out, Event[T]{Type: Bookmark})
	case watch.Error:
		o.log.Debugw("watch stream reported an error event", "gvr", o.gvr.String())
	}
}

// emitDecoded repopulates an ADDED payload that came back empty (the
// quirk spec.md §4.1 calls out), decodes, and publishes.
func (o *Observer[T]) emitDecoded(ctx context.Context, t EventType, u *unstructured.Unstructured, out chan<- Event[T]) {
	if t == Added && isEmptyPayload(u) && o.getByName != nil {
		full, err := o.getByName(ctx, u.GetName())
		if err != nil {
			o.log.Debugw("follow-up get for empty ADDED payload failed", "name", u.GetName(), "error", err)
		} else {
			u = full
		}
	}
	obj, err := o.decode(u)
	if err != nil {
		o.log.Warnw("failed to decode watched object, skipping", "gvr", o.gvr.String(), "name", u.GetName(), "error", err)
		return
	}
	o.send(out, Event[T]{Type: t, Object: obj})
}

func (o *Observer[T]) send(out chan<- Event[T], ev Event[T]) {
	select {
	case out <- ev:
	}
}

// isEmptyPayload reports whether an unstructured object carries only
// identity metadata, the shape some API server versions send for the
// very first ADDED event of a watch.
func isEmptyPayload(u *unstructured.Unstructured) bool {
	obj := u.Object
	_, hasSpec := obj["spec"]
	_, hasStatus := obj["status"]
	_, hasData := obj["data"]
	return !hasSpec && !hasStatus && !hasData
}

func toEventType(t watch.EventType) EventType {
	switch t {
	case watch.Added:
		return Added
	case watch.Modified:
		return Modified
	case watch.Deleted:
		return Deleted
	default:
		return ErrorEvt
	}
}
