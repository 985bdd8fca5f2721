// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charm implements the hook-facing behaviour of the Ubuntu
// Pro charm: it reads declared configuration, runs a reconciliation
// pass against the machine and reports workload status.
package charm

import (
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/mutex/v2"
	"gopkg.in/yaml.v3"

	"github.com/canonical/ubuntu-pro-charm/internal/charmconfig"
	"github.com/canonical/ubuntu-pro-charm/internal/hookenv"
	"github.com/canonical/ubuntu-pro-charm/internal/procli"
	"github.com/canonical/ubuntu-pro-charm/internal/reconciler"
)

const (
	// stateKey is the unit state key holding the record of the last
	// reconciled configuration.
	stateKey = "applied-configuration"

	// lockName serializes reconciliation passes machine-wide, the
	// same way the uniter serializes hook execution.
	lockName = "ubuntu-pro-charm"
)

// HookContext is the slice of the hook tools the charm uses.
type HookContext interface {
	Config() (map[string]interface{}, error)
	SetStatus(status hookenv.Status, message string) error
	State(key string) (string, bool, error)
	SetState(key, value string) error
}

// Reconciler applies a configuration snapshot against the machine.
type Reconciler interface {
	Reconcile(current charmconfig.Snapshot, previous charmconfig.Applied) (reconciler.Result, error)
}

// StatusReader reports the live pro client state, used to derive the
// workload status message.
type StatusReader interface {
	Status() (procli.Status, error)
}

// Logger defines the methods used by the charm for logging.
type Logger interface {
	Infof(string, ...interface{})
	Warningf(string, ...interface{})
	Debugf(string, ...interface{})
}

// Config holds all necessary attributes to build a Charm.
type Config struct {
	Hook       HookContext
	Reconciler Reconciler
	Pro        StatusReader
	Clock      clock.Clock
	Logger     Logger

	// AcquireLock can be set by tests; left nil, a machine-wide
	// named mutex is used.
	AcquireLock func() (mutex.Releaser, error)
}

// Validate will err unless basic requirements for a valid config are
// met.
func (c Config) Validate() error {
	if c.Hook == nil {
		return errors.New("missing Hook")
	}
	if c.Reconciler == nil {
		return errors.New("missing Reconciler")
	}
	if c.Pro == nil {
		return errors.New("missing Pro")
	}
	if c.Clock == nil {
		return errors.New("missing Clock")
	}
	if c.Logger == nil {
		return errors.New("missing Logger")
	}
	return nil
}

// Charm dispatches hook invocations.
type Charm struct {
	config Config
}

// New returns a Charm for the given config.
func New(config Config) (*Charm, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.AcquireLock == nil {
		clk := config.Clock
		config.AcquireLock = func() (mutex.Releaser, error) {
			return mutex.Acquire(mutex.Spec{
				Name:  lockName,
				Clock: clk,
				Delay: 250 * time.Millisecond,
			})
		}
	}
	return &Charm{config: config}, nil
}

// RunHook runs the handler for the named hook. Hooks without a
// handler are a no-op; Juju invokes every hook kind regardless of
// what a charm cares about.
func (c *Charm) RunHook(name string) error {
	c.config.Logger.Infof("running hook %q", name)
	switch name {
	case "install", "config-changed", "upgrade-charm":
		return errors.Trace(c.configChanged())
	case "update-status":
		return errors.Trace(c.reportStatus())
	default:
		c.config.Logger.Debugf("no handler for hook %q", name)
		return nil
	}
}

// configChanged runs one reconciliation pass. Invalid configuration
// blocks the unit without failing the hook; any reconciliation
// failure blocks the unit and fails the hook so Juju surfaces the
// error to the operator.
func (c *Charm) configChanged() error {
	releaser, err := c.config.AcquireLock()
	if err != nil {
		return errors.Annotate(err, "acquiring hook lock")
	}
	defer releaser.Release()

	if err := c.config.Hook.SetStatus(hookenv.StatusMaintenance, "configuring ubuntu pro client"); err != nil {
		return errors.Trace(err)
	}
	snapshot, err := c.readSnapshot()
	if err != nil {
		return errors.Trace(err)
	}
	if err := snapshot.Validate(); err != nil {
		c.config.Logger.Warningf("invalid configuration: %v", err)
		return errors.Trace(c.config.Hook.SetStatus(hookenv.StatusBlocked, err.Error()))
	}
	previous, err := c.loadApplied()
	if err != nil {
		return errors.Trace(err)
	}
	result, err := c.config.Reconciler.Reconcile(snapshot, previous)
	if err != nil {
		if statusErr := c.config.Hook.SetStatus(hookenv.StatusBlocked, err.Error()); statusErr != nil {
			c.config.Logger.Warningf("cannot set unit status: %v", statusErr)
		}
		return errors.Trace(err)
	}
	if result.Converged {
		c.config.Logger.Infof("configuration already converged")
	}
	if err := c.storeApplied(result.Applied); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.setWorkloadStatus(snapshot))
}

// reportStatus refreshes the workload status without reconciling.
func (c *Charm) reportStatus() error {
	snapshot, err := c.readSnapshot()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.setWorkloadStatus(snapshot))
}

func (c *Charm) readSnapshot() (charmconfig.Snapshot, error) {
	options, err := c.config.Hook.Config()
	if err != nil {
		return charmconfig.Snapshot{}, errors.Trace(err)
	}
	return charmconfig.ParseSnapshot(options), nil
}

func (c *Charm) setWorkloadStatus(snapshot charmconfig.Snapshot) error {
	if !snapshot.Attached() {
		return errors.Trace(c.config.Hook.SetStatus(hookenv.StatusBlocked, "No token configured"))
	}
	status, err := c.config.Pro.Status()
	if err != nil {
		return errors.Trace(err)
	}
	if !status.Attached {
		return errors.Trace(c.config.Hook.SetStatus(hookenv.StatusBlocked, "Not attached"))
	}
	message := "Attached (" + strings.Join(status.EnabledServices, ",") + ")"
	return errors.Trace(c.config.Hook.SetStatus(hookenv.StatusActive, message))
}

func (c *Charm) loadApplied() (charmconfig.Applied, error) {
	value, found, err := c.config.Hook.State(stateKey)
	if err != nil {
		return charmconfig.Applied{}, errors.Trace(err)
	}
	if !found {
		return charmconfig.Applied{}, nil
	}
	var applied charmconfig.Applied
	if err := yaml.Unmarshal([]byte(value), &applied); err != nil {
		return charmconfig.Applied{}, errors.Annotate(err, "parsing stored configuration record")
	}
	return applied, nil
}

func (c *Charm) storeApplied(applied charmconfig.Applied) error {
	data, err := yaml.Marshal(applied)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.config.Hook.SetState(stateKey, string(data)))
}
