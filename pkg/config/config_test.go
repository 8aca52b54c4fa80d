// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

func TestLoadWithEmptyPathAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultCPUOvercommit, cfg.Reconciler.CPUOvercommit)
	assert.Equal(t, constants.DefaultRAMOvercommit, cfg.Reconciler.RAMOvercommit)
	assert.Equal(t, constants.DefaultPasswordValidity, cfg.Reconciler.DisplaySecretPasswordValidity)
	assert.Equal(t, constants.DefaultRunnerImage, cfg.Reconciler.RunnerImage)
}

func TestLoadReadsYAMLFileAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
manager:
  controller:
    namespace: custom-ns
reconciler:
  runnerImage: custom/runner:v2
  cpuOvercommit: 3.5
  loadBalancerService:
    enabled: true
    labels:
      tier: gold
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom-ns", cfg.Namespace)
	assert.Equal(t, "custom/runner:v2", cfg.Reconciler.RunnerImage)
	assert.Equal(t, 3.5, cfg.Reconciler.CPUOvercommit)
	// default untouched by the override file
	assert.Equal(t, constants.DefaultRAMOvercommit, cfg.Reconciler.RAMOvercommit)
	assert.True(t, cfg.Reconciler.LoadBalancerService.Enabled)
	assert.Equal(t, "gold", cfg.Reconciler.LoadBalancerService.Labels["tier"])
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
