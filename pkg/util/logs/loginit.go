// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package logs wires zap as the manager's sole structured-logging
// backend.
package logs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	timeFormat = "2006-01-02T15:04:05.000Z"
	timeKey    = "@timestamp"
	messageKey = "message"
	callerKey  = "caller"
)

// InitLogs builds and installs the global zap logger. development
// switches to zap's human-readable console encoder; otherwise the
// JSON production encoder is used with the manager's timestamp and
// field-name conventions.
func InitLogs(development bool, level zapcore.Level) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeFormat)
	cfg.EncoderConfig.TimeKey = timeKey
	cfg.EncoderConfig.MessageKey = messageKey
	cfg.EncoderConfig.CallerKey = callerKey

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger.Sugar(), nil
}

// ForVM returns a logger with the VM's namespace/name attached as
// structured fields, the idiom every component uses before logging
// anything about a specific VM.
func ForVM(base *zap.SugaredLogger, namespace, name string) *zap.SugaredLogger {
	return base.With("namespace", namespace, "vm", name)
}
