// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookenv

import (
	"github.com/juju/loggo"

	"github.com/canonical/ubuntu-pro-charm/internal/runner"
)

// logWriter forwards loggo records to juju-log so everything the
// charm logs ends up in the unit's Juju log.
type logWriter struct {
	runner runner.CommandRunner
}

// NewLogWriter returns a loggo.Writer backed by juju-log.
func NewLogWriter(commandRunner runner.CommandRunner) loggo.Writer {
	return &logWriter{runner: commandRunner}
}

// Write implements loggo.Writer. Failures to log are dropped; a hook
// must not fail because the log pipe did.
func (w *logWriter) Write(entry loggo.Entry) {
	_, _ = runner.Run(w.runner, runner.Command(
		"juju-log", "--log-level", entry.Level.String(), entry.Module+": "+entry.Message), nil)
}
