// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package config loads the manager's operator configuration. The
// launcher's file-based app configuration and CLI flag parsing are out
// of scope (spec.md §1); this package only defines the struct the core
// reads and a thin viper-backed loader for it.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

// ReconcilerConfig is the "/Reconciler/..." slice of the operator
// configuration (spec.md §6).
type ReconcilerConfig struct {
	RunnerDataPvcStorageClassName string
	RunnerImage                   string
	CPUOvercommit                 float64
	RAMOvercommit                 float64
	LoadBalancerService           LoadBalancerDefaults
	LoggingProperties             string
	DisplaySecretPasswordValidity int
}

// LoadBalancerDefaults mirrors the "bool or mapping" shape from
// spec.md §6: Enabled gates the whole feature, Labels/Annotations are
// merged into every rendered load-balancer Service unless the VM
// supplies its own (spec.md §4.11).
type LoadBalancerDefaults struct {
	Enabled     bool
	Labels      map[string]string
	Annotations map[string]string
}

// OperatorConfig is the top-level "/Manager/Controller" configuration
// tree consumed from the launcher (spec.md §6).
type OperatorConfig struct {
	Namespace  string
	Reconciler ReconcilerConfig
}

// Load reads operator configuration from the YAML file at path using
// viper, with environment variable overrides following the same
// hierarchy (e.g. VMOPERATOR_RECONCILER_CPUOVERCOMMIT overrides
// Reconciler.CPUOvercommit). An empty path still produces a config
// with defaults applied, sourced entirely from the environment.
func Load(path string) (*OperatorConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("vmoperator")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading operator config %s", path)
		}
	}

	setDefaults(v)

	cfg := &OperatorConfig{
		Namespace: v.GetString("manager.controller.namespace"),
		Reconciler: ReconcilerConfig{
			RunnerDataPvcStorageClassName: v.GetString("reconciler.runnerdatapvc.storageclassname"),
			RunnerImage:                   v.GetString("reconciler.runnerimage"),
			CPUOvercommit:                 v.GetFloat64("reconciler.cpuovercommit"),
			RAMOvercommit:                 v.GetFloat64("reconciler.ramovercommit"),
			LoggingProperties:             v.GetString("reconciler.loggingproperties"),
			DisplaySecretPasswordValidity: v.GetInt("reconciler.displaysecretreconciler.passwordvalidity"),
			LoadBalancerService: LoadBalancerDefaults{
				Enabled:     v.GetBool("reconciler.loadbalancerservice.enabled"),
				Labels:      v.GetStringMapString("reconciler.loadbalancerservice.labels"),
				Annotations: v.GetStringMapString("reconciler.loadbalancerservice.annotations"),
			},
		},
	}
	switch lb := v.Get("reconciler.loadbalancerservice").(type) {
	case bool:
		cfg.Reconciler.LoadBalancerService.Enabled = lb
	case map[string]any:
		if !v.IsSet("reconciler.loadbalancerservice.enabled") {
			cfg.Reconciler.LoadBalancerService.Enabled = true
		}
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("reconciler.cpuovercommit", constants.DefaultCPUOvercommit)
	v.SetDefault("reconciler.ramovercommit", constants.DefaultRAMOvercommit)
	v.SetDefault("reconciler.displaysecretreconciler.passwordvalidity", constants.DefaultPasswordValidity)
	v.SetDefault("reconciler.runnerimage", constants.DefaultRunnerImage)
}
