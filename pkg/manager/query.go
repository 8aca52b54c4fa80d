// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package manager

import (
	"strings"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
)

// VmSummary is the result shape for GetVms (spec.md §6).
type VmSummary struct {
	Name        string
	State       string
	ConsoleUser string
	Pool        string
}

// PoolSummary is the result shape for GetPools (spec.md §6).
type PoolSummary struct {
	Name    string
	Members []string
}

// GetVms answers the GetVms console-UI query as a synchronous snapshot
// read over the Channel Dictionary, with no Kubernetes API round trip
// (spec.md §6; filter semantics decided in SPEC_FULL.md's supplement:
// case-sensitive substring/equality over name and consoleUser).
func (m *Manager) GetVms(nameFilter, userFilter string) []VmSummary {
	var out []VmSummary
	for _, name := range m.dict.Names() {
		ch, ok := m.dict.Get(name)
		if !ok {
			continue
		}
		vm := ch.VmDef()
		if vm == nil {
			continue
		}
		if nameFilter != "" && !strings.Contains(vm.Name, nameFilter) {
			continue
		}
		if userFilter != "" && vm.Status.ConsoleUser != userFilter {
			continue
		}
		out = append(out, VmSummary{
			Name:        vm.Name,
			State:       string(vm.Spec.Vm.State),
			ConsoleUser: vm.Status.ConsoleUser,
			Pool:        m.assignedPoolFor(vm.Name),
		})
	}
	return out
}

// GetPools answers the GetPools console-UI query the same way:
// filtering by name or by a user's pool permission (spec.md §6, §8 S6).
func (m *Manager) GetPools(nameFilter, userFilter string) []PoolSummary {
	m.poolsMu.RLock()
	defer m.poolsMu.RUnlock()

	var out []PoolSummary
	for name, p := range m.pools {
		if nameFilter != "" && !strings.Contains(name, nameFilter) {
			continue
		}
		if userFilter != "" && !hasPermissionFor(p.Permissions, userFilter) {
			continue
		}
		members := make([]string, 0, len(p.Members))
		for member := range p.Members {
			members = append(members, member)
		}
		out = append(out, PoolSummary{Name: name, Members: members})
	}
	return out
}

func hasPermissionFor(perms []vmoperatorv1.Permission, user string) bool {
	for _, p := range perms {
		if p.User == user {
			return true
		}
	}
	return false
}
