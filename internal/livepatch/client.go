// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package livepatch manages the canonical-livepatch snap for on-prem
// livepatch servers.
package livepatch

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	charmerrors "github.com/canonical/ubuntu-pro-charm/internal/charmconfig/errors"
	"github.com/canonical/ubuntu-pro-charm/internal/runner"
)

var logger = loggo.GetLogger("ubuntu-pro-charm.livepatch")

const tool = "canonical-livepatch"

// Client shells out to canonical-livepatch and snap.
type Client struct {
	runner runner.CommandRunner
}

// NewClient returns a Client running commands through the given runner.
func NewClient(commandRunner runner.CommandRunner) *Client {
	return &Client{runner: commandRunner}
}

// Install installs the canonical-livepatch snap.
func (c *Client) Install() error {
	logger.Infof("installing canonical-livepatch snap")
	if _, err := runner.Run(c.runner, runner.Command("snap", "install", tool), nil); err != nil {
		return fmt.Errorf("installing canonical-livepatch: %v%w",
			err, errors.Hide(charmerrors.ExternalToolFailure))
	}
	return nil
}

// SetServer points the livepatch client at an on-prem server.
func (c *Client) SetServer(serverURL string) error {
	logger.Infof("setting livepatch on-prem server")
	if _, err := runner.Run(c.runner, runner.Command(tool, "config", "remote-server="+serverURL), nil); err != nil {
		return fmt.Errorf("setting livepatch server: %v%w",
			err, errors.Hide(charmerrors.ExternalToolFailure))
	}
	return nil
}

// Enable enables livepatch with the given auth token.
func (c *Client) Enable(token string) error {
	logger.Infof("enabling livepatch using auth token")
	if _, err := runner.Run(c.runner, runner.Command(tool, "enable", token), nil); err != nil {
		return fmt.Errorf("enabling livepatch: %v%w",
			redactEnableError(err), errors.Hide(charmerrors.ExternalToolFailure))
	}
	return nil
}

// Disable turns livepatch off.
func (c *Client) Disable() error {
	logger.Infof("disabling livepatch")
	if _, err := runner.Run(c.runner, runner.Command(tool, "disable"), nil); err != nil {
		return fmt.Errorf("disabling livepatch: %v%w",
			err, errors.Hide(charmerrors.ExternalToolFailure))
	}
	return nil
}

// redactEnableError strips the livepatch token from a failed enable
// invocation before it is logged or surfaced.
func redactEnableError(err error) error {
	if exitErr, ok := errors.AsType[*runner.ExitError](err); ok {
		redacted := *exitErr
		redacted.Command = runner.Command(tool, "enable", "<token>")
		return &redacted
	}
	return err
}
