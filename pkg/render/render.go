// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package render implements the rendering contract spec.md §4.4/§6
// leaves to a "template mechanism": a model built from a VirtualMachine
// (plus its assigned pool and live node data) goes in, the runner's YAML
// config document comes out. The runner itself, and the exact on-disk
// template set it expects, are out of scope (spec.md Non-goals); this
// package only has to supply a model and a renderer with a stable
// contract the ConfigMap sub-reconciler can call.
package render

import (
	"bytes"
	"text/template"

	"github.com/pkg/errors"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
)

// Model is the data a runnerConfig template sees. It purposefully holds
// only scalar/slice fields so it round-trips cleanly through
// text/template without custom function maps.
type Model struct {
	Name          string
	Namespace     string
	State         string
	MaximumRam    string
	CurrentRam    string
	MaximumCpus   int32
	CurrentCpus   int32
	DisplayPort   int32
	ConsoleUser   string
	Pool          string
	CloudInitMeta string
	ResetCount    int
}

// NewModel builds a render Model from a VirtualMachine. assignedPool may
// be empty if the VM is not currently assigned. resetCount is the
// in-memory ResetVm counter (reconcile.Context.ResetCount); it is
// rendered into the document so a reset changes the document's content
// even when nothing else about the VM did, which is what lets the
// config map's resourceVersion move and the runner observe the bump.
func NewModel(vm *vmoperatorv1.VirtualMachine, assignedPool string, resetCount int) Model {
	return Model{
		Name:          vm.Name,
		Namespace:     vm.Namespace,
		State:         string(vm.Spec.Vm.State),
		MaximumRam:    vm.Spec.Vm.MaximumRam,
		CurrentRam:    vm.Spec.Vm.CurrentRam,
		MaximumCpus:   vm.Spec.Vm.MaximumCpus,
		CurrentCpus:   vm.Spec.Vm.CurrentCpus,
		DisplayPort:   vm.Spec.Vm.Display.Spice.Port,
		ConsoleUser:   vm.Status.ConsoleUser,
		Pool:          assignedPool,
		CloudInitMeta: vm.Spec.CloudInit.MetaData,
		ResetCount:    resetCount,
	}
}

// DefaultRunnerConfigTemplate is the built-in runnerConfig document.
// Deployments that need a custom layout can build their own
// *template.Template and call Render directly instead of RenderDefault.
const DefaultRunnerConfigTemplate = `
name: {{.Name}}
namespace: {{.Namespace}}
state: {{.State}}
resources:
  maximumRam: {{.MaximumRam}}
  currentRam: {{.CurrentRam}}
  maximumCpus: {{.MaximumCpus}}
  currentCpus: {{.CurrentCpus}}
display:
  port: {{.DisplayPort}}
consoleUser: {{.ConsoleUser}}
pool: {{.Pool}}
resetCount: {{.ResetCount}}
{{if .CloudInitMeta}}cloudInitMetaData: |
{{.CloudInitMeta}}
{{end}}`

// Render executes tmpl against model and returns the resulting document.
func Render(tmpl *template.Template, model Model) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, model); err != nil {
		return "", errors.Wrap(err, "rendering runner config template")
	}
	return buf.String(), nil
}

// RenderDefault renders DefaultRunnerConfigTemplate for model.
func RenderDefault(model Model) (string, error) {
	tmpl, err := template.New("runnerConfig").Parse(DefaultRunnerConfigTemplate)
	if err != nil {
		return "", errors.Wrap(err, "parsing default runner config template")
	}
	return Render(tmpl, model)
}
