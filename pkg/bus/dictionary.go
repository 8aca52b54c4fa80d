// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package bus

import "sync"

// Dictionary is the Channel Dictionary contract (spec.md §4.2): a
// process-wide map from VM name to its per-VM channel.
type Dictionary interface {
	// Get returns the channel for name, without creating one.
	Get(name string) (*VmChannel, bool)
	// GetOrCreate returns the channel for name, creating it (with an
	// empty VmDefinition) if absent.
	GetOrCreate(name string) *VmChannel
	// Remove drops the mapping for name. Any goroutine still holding a
	// reference to the channel keeps working until it drops it.
	Remove(name string)
	// ReadOnly returns a view whose GetOrCreate degenerates to Get and
	// whose Remove is a no-op (spec.md §4.2).
	ReadOnly() Dictionary
}

// ChannelDictionary is the concurrent, writable implementation of
// Dictionary. All operations are safe for multiple producers; reads
// take a read lock so they never block each other.
type ChannelDictionary struct {
	mu       sync.RWMutex
	channels map[string]*VmChannel
	dispatch DispatchFunc
}

// NewChannelDictionary builds an empty dictionary. dispatch is invoked,
// once per event and strictly in order, on every channel it creates.
func NewChannelDictionary(dispatch DispatchFunc) *ChannelDictionary {
	return &ChannelDictionary{
		channels: make(map[string]*VmChannel),
		dispatch: dispatch,
	}
}

// Get implements Dictionary.
func (d *ChannelDictionary) Get(name string) (*VmChannel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch, ok := d.channels[name]
	return ch, ok
}

// GetOrCreate implements Dictionary.
func (d *ChannelDictionary) GetOrCreate(name string) *VmChannel {
	d.mu.RLock()
	ch, ok := d.channels[name]
	d.mu.RUnlock()
	if ok {
		return ch
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.channels[name]; ok {
		return ch
	}
	ch = newVmChannel(name, d.dispatch)
	d.channels[name] = ch
	return ch
}

// Remove implements Dictionary.
func (d *ChannelDictionary) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.channels, name)
}

// ReadOnly implements Dictionary.
func (d *ChannelDictionary) ReadOnly() Dictionary {
	return readOnlyDictionary{d}
}

// Names returns a snapshot of every known VM name, used by the
// manager's GetVms/GetPools query handlers (spec.md §6).
func (d *ChannelDictionary) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	return names
}

// readOnlyDictionary wraps a ChannelDictionary so that GetOrCreate
// never creates and Remove never removes (spec.md §4.2).
type readOnlyDictionary struct {
	d *ChannelDictionary
}

func (r readOnlyDictionary) Get(name string) (*VmChannel, bool) { return r.d.Get(name) }
func (r readOnlyDictionary) GetOrCreate(name string) *VmChannel {
	ch, _ := r.d.Get(name)
	return ch
}
func (r readOnlyDictionary) Remove(string)             {}
func (r readOnlyDictionary) ReadOnly() Dictionary       { return r }
