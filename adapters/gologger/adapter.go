// Package gologger bridges the hub's glog plumbing into go-job's logger
// contracts so scheduled sweeps log through the same provider as everything
// else.
package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const defaultLoggerName = "eventhub"

// Resolve applies the provider > logger > nop precedence, defaulting the
// logger name to "eventhub" when blank.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	if strings.TrimSpace(name) == "" {
		name = defaultLoggerName
	}
	return glog.Resolve(name, provider, logger)
}

// ForJob resolves the hub logger and returns the go-job equivalents alongside
// it. Nil glog values map to nil job values so go-job applies its own
// defaults.
func ForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)

	var jobProvider job.LoggerProvider
	if resolvedProvider != nil {
		jobProvider = job.GoLoggerProvider(resolvedProvider)
	}
	var jobLogger job.Logger
	if resolvedLogger != nil {
		jobLogger = job.GoLogger(resolvedLogger)
	}
	return resolvedProvider, resolvedLogger, jobProvider, jobLogger
}
