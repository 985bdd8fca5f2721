// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hookenv gives the charm access to the Juju hook tools. A
// hook process talks to its unit agent exclusively through these
// commands; nothing here touches the workload itself.
package hookenv

import (
	"encoding/json"
	"strings"

	"github.com/juju/errors"

	"github.com/canonical/ubuntu-pro-charm/internal/runner"
)

// Status is a workload status value understood by status-set.
type Status string

const (
	StatusMaintenance Status = "maintenance"
	StatusBlocked     Status = "blocked"
	StatusWaiting     Status = "waiting"
	StatusActive      Status = "active"
)

// Context runs hook tools on behalf of the charm.
type Context struct {
	runner runner.CommandRunner
}

// NewContext returns a Context running hook tools through the given
// runner.
func NewContext(commandRunner runner.CommandRunner) *Context {
	return &Context{runner: commandRunner}
}

// Config returns the unit's declared configuration as reported by
// config-get.
func (ctx *Context) Config() (map[string]interface{}, error) {
	out, err := runner.Run(ctx.runner, runner.Command("config-get", "--format=json"), nil)
	if err != nil {
		return nil, errors.Annotate(err, "reading charm config")
	}
	options := make(map[string]interface{})
	if strings.TrimSpace(out) == "" {
		return options, nil
	}
	if err := json.Unmarshal([]byte(out), &options); err != nil {
		return nil, errors.Annotate(err, "parsing config-get output")
	}
	return options, nil
}

// SetStatus reports the unit's workload status to the controller.
func (ctx *Context) SetStatus(status Status, message string) error {
	_, err := runner.Run(ctx.runner, runner.Command("status-set", string(status), message), nil)
	return errors.Annotate(err, "setting unit status")
}

// State returns the unit state value for key. The second return is
// false when no value is stored.
func (ctx *Context) State(key string) (string, bool, error) {
	out, err := runner.Run(ctx.runner, runner.Command("state-get", key), nil)
	if err != nil {
		return "", false, errors.Annotatef(err, "reading unit state %q", key)
	}
	value := strings.TrimSuffix(out, "\n")
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// SetState stores a unit state value under key, replacing any
// previous value.
func (ctx *Context) SetState(key, value string) error {
	_, err := runner.Run(ctx.runner, runner.Command("state-set", key+"="+value), nil)
	return errors.Annotatef(err, "writing unit state %q", key)
}

// Log sends a message to the unit's Juju log.
func (ctx *Context) Log(message string) error {
	_, err := runner.Run(ctx.runner, runner.Command("juju-log", message), nil)
	return errors.Trace(err)
}
