// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package procli drives the Ubuntu Pro command line client. Everything
// the charm knows about the machine's live subscription state comes
// from here.
package procli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/proxy"
	"github.com/juju/retry"
	"gopkg.in/yaml.v3"

	charmerrors "github.com/canonical/ubuntu-pro-charm/internal/charmconfig/errors"
	"github.com/canonical/ubuntu-pro-charm/internal/runner"
)

var logger = loggo.GetLogger("ubuntu-pro-charm.procli")

const tool = "pro"

// uaclientConfPath is the client's own configuration file, rewritten
// when the contract server changes. Patched in tests.
var uaclientConfPath = "/etc/ubuntu-advantage/uaclient.conf"

// attach failures are retried a few times with a short backoff; a bad
// token fails the same way as a flaky contract server, so the retries
// stay cheap.
const (
	attachAttempts = 3
	attachDelay    = 500 * time.Millisecond
)

// Status reports the live state of the pro client.
type Status struct {
	// Attached is true when the machine holds a subscription.
	Attached bool
	// EnabledServices lists the services the client reports enabled.
	EnabledServices []string
}

// Client shells out to the pro tool.
type Client struct {
	runner runner.CommandRunner
	clock  clock.Clock
}

// NewClient returns a Client running commands through the given
// runner. The clock paces attach retries.
func NewClient(commandRunner runner.CommandRunner, clk clock.Clock) *Client {
	return &Client{runner: commandRunner, clock: clk}
}

// statusOutput matches the subset of `pro status --format json` the
// charm consumes.
type statusOutput struct {
	Attached bool `json:"attached"`
	Services []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"services"`
}

// Status returns the live attach state and enabled services.
func (c *Client) Status() (Status, error) {
	out, err := runner.Run(c.runner, runner.Command(tool, "status", "--all", "--format", "json"), nil)
	if err != nil {
		return Status{}, fmt.Errorf(
			"querying pro status: %v%w", err, errors.Hide(charmerrors.ExternalToolFailure))
	}
	var parsed statusOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return Status{}, errors.Annotate(err, "parsing pro status output")
	}
	status := Status{Attached: parsed.Attached}
	for _, service := range parsed.Services {
		if service.Status == "enabled" {
			status.EnabledServices = append(status.EnabledServices, service.Name)
		}
	}
	return status, nil
}

// Attach binds the machine to a subscription using the token. When
// autoEnable is false the client is told not to activate its default
// service set, leaving activation to explicit enable calls.
func (c *Client) Attach(token string, autoEnable bool) error {
	args := []string{"attach", token, "--assume-yes"}
	if !autoEnable {
		args = append(args, "--no-auto-enable")
	}
	logger.Infof("attaching ubuntu pro subscription")
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			_, err := runner.Run(c.runner, runner.Command(tool, args...), nil)
			return err
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Warningf("attach attempt %d failed: %v", attempt, redactAttachError(err))
		},
		Attempts:    attachAttempts,
		Delay:       attachDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.clock,
	})
	if err != nil {
		err = retry.LastError(err)
		return fmt.Errorf("attaching subscription: %v%w",
			redactAttachError(err), errors.Hide(charmerrors.ExternalToolFailure))
	}
	return nil
}

// Detach releases the machine's subscription.
func (c *Client) Detach() error {
	logger.Infof("detaching ubuntu pro subscription")
	if _, err := runner.Run(c.runner, runner.Command(tool, "detach", "--assume-yes"), nil); err != nil {
		return fmt.Errorf(
			"detaching subscription: %v%w", err, errors.Hide(charmerrors.ExternalToolFailure))
	}
	return nil
}

// EnableService activates a single service.
func (c *Client) EnableService(name string) error {
	logger.Infof("enabling service %q", name)
	if _, err := runner.Run(c.runner, runner.Command(tool, "enable", name, "--assume-yes"), nil); err != nil {
		return fmt.Errorf(
			"enabling service %q: %v%w", name, err, errors.Hide(charmerrors.ExternalToolFailure))
	}
	return nil
}

// DisableService deactivates a single service.
func (c *Client) DisableService(name string) error {
	logger.Infof("disabling service %q", name)
	if _, err := runner.Run(c.runner, runner.Command(tool, "disable", name, "--assume-yes"), nil); err != nil {
		return fmt.Errorf(
			"disabling service %q: %v%w", name, err, errors.Hide(charmerrors.ExternalToolFailure))
	}
	return nil
}

// proxySetting is one staged pro config key with the value it held
// before the pass, kept for rollback.
type proxySetting struct {
	key   string
	value string
	prior string
}

// ApplyProxy pushes the proxy overrides and CA bundle to the client.
// The client validates each setting and rejects unreachable proxies.
// When a later setting is rejected, every setting already committed in
// this pass is restored to its prior value, so a failed pass leaves no
// partial proxy state behind.
func (c *Client) ApplyProxy(settings, previous proxy.Settings, sslCertFile string) error {
	if sslCertFile != "" {
		if _, err := os.Stat(sslCertFile); err != nil {
			return fmt.Errorf("cannot read override_ssl_cert_file: %v%w",
				err, errors.Hide(charmerrors.ProxyValidationFailed))
		}
	}
	staged := []proxySetting{
		{key: "http_proxy", value: settings.Http, prior: previous.Http},
		{key: "https_proxy", value: settings.Https, prior: previous.Https},
	}
	var committed []proxySetting
	for _, setting := range staged {
		if err := c.setConfig(setting.key, setting.value); err != nil {
			c.restoreProxySettings(committed)
			return errors.Trace(err)
		}
		committed = append(committed, setting)
	}
	if err := c.updateClientConfig(func(conf map[string]interface{}) {
		if sslCertFile == "" {
			delete(conf, "ca_certs")
		} else {
			conf["ca_certs"] = sslCertFile
		}
	}); err != nil {
		c.restoreProxySettings(committed)
		return fmt.Errorf("updating client CA bundle: %v%w",
			err, errors.Hide(charmerrors.ProxyValidationFailed))
	}
	return nil
}

// restoreProxySettings puts settings committed earlier in a failed
// pass back to their prior values. Restore failures are logged, not
// returned; the original rejection is the error the operator needs to
// see.
func (c *Client) restoreProxySettings(committed []proxySetting) {
	for _, setting := range committed {
		if setting.value == setting.prior {
			continue
		}
		if err := c.setConfig(setting.key, setting.prior); err != nil {
			logger.Warningf("cannot restore %s after rejected proxy configuration: %v",
				setting.key, err)
		}
	}
}

func (c *Client) setConfig(key, value string) error {
	var err error
	if value == "" {
		logger.Debugf("clearing pro config %s", key)
		_, err = runner.Run(c.runner, runner.Command(tool, "config", "unset", key), nil)
		// Unsetting a key that was never set is a no-op failure on
		// older clients.
		if exitErr, ok := errors.AsType[*runner.ExitError](err); ok && exitErr.Code == 1 {
			return nil
		}
	} else {
		logger.Debugf("setting pro config %s", key)
		_, err = runner.Run(c.runner, runner.Command(tool, "config", "set", key+"="+value), nil)
	}
	if err != nil {
		return fmt.Errorf("setting %s: %v%w", key, err, errors.Hide(charmerrors.ProxyValidationFailed))
	}
	return nil
}

// SetContractURL rewrites the contract server address in the client's
// configuration file. The client must be detached when this changes;
// the reconciler enforces that ordering.
func (c *Client) SetContractURL(contractURL string) error {
	logger.Infof("setting contract server to %q", contractURL)
	err := c.updateClientConfig(func(conf map[string]interface{}) {
		conf["contract_url"] = contractURL
	})
	if err != nil {
		return fmt.Errorf("updating contract server: %v%w",
			err, errors.Hide(charmerrors.ExternalToolFailure))
	}
	return nil
}

func (c *Client) updateClientConfig(update func(map[string]interface{})) error {
	data, err := os.ReadFile(uaclientConfPath)
	if err != nil {
		return errors.Trace(err)
	}
	conf := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return errors.Annotatef(err, "parsing %s", uaclientConfPath)
	}
	update(conf)
	out, err := yaml.Marshal(conf)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.WriteFile(uaclientConfPath, out, 0644); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// redactAttachError strips the subscription token from an attach
// failure so it never reaches logs or the operator-visible status
// surface.
func redactAttachError(err error) error {
	if exitErr, ok := errors.AsType[*runner.ExitError](err); ok {
		redacted := *exitErr
		redacted.Command = runner.Command(tool, "attach", "<token>")
		return &redacted
	}
	return err
}
