// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package aptpkg manages the client package and its archive source.
package aptpkg

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	charmerrors "github.com/canonical/ubuntu-pro-charm/internal/charmconfig/errors"
	"github.com/canonical/ubuntu-pro-charm/internal/runner"
)

var logger = loggo.GetLogger("ubuntu-pro-charm.aptpkg")

// ClientPackage is the apt package carrying the pro tool.
const ClientPackage = "ubuntu-advantage-tools"

const (
	// the basic command for all apt-get calls:
	//		--force-confold is passed to dpkg to never overwrite config files
	//		--assume-yes to never prompt for confirmation
	aptget = "apt-get --option=Dpkg::Options::=--force-confold --assume-yes --quiet"

	// the basic command for all add-apt-repository calls:
	//		--yes to never prompt for confirmation
	addaptrepo = "add-apt-repository --yes"
)

// apt must never block on a dpkg prompt inside a hook.
var aptEnvironment = []string{"DEBIAN_FRONTEND=noninteractive"}

// Manager installs and removes packages and archive sources.
type Manager struct {
	runner runner.CommandRunner
}

// NewManager returns a Manager running commands through the given
// runner.
func NewManager(commandRunner runner.CommandRunner) *Manager {
	return &Manager{runner: commandRunner}
}

// AddRepository adds an archive source such as ppa:ua-client/stable.
func (m *Manager) AddRepository(repo string) error {
	logger.Infof("installing ppa %q", repo)
	return m.run(fmt.Sprintf("%s %q", addaptrepo, repo))
}

// RemoveRepository removes a previously added archive source.
func (m *Manager) RemoveRepository(repo string) error {
	logger.Infof("removing ppa %q", repo)
	return m.run(fmt.Sprintf("%s --remove %q", addaptrepo, repo))
}

// Update refreshes the package indexes.
func (m *Manager) Update() error {
	return m.run(aptget + " update")
}

// Install installs the named package.
func (m *Manager) Install(pkg string) error {
	logger.Infof("installing package %q", pkg)
	return m.run(aptget + " install " + pkg)
}

// Remove removes the named package.
func (m *Manager) Remove(pkg string) error {
	logger.Infof("removing package %q", pkg)
	return m.run(aptget + " remove " + pkg)
}

func (m *Manager) run(command string) error {
	if _, err := runner.Run(m.runner, command, aptEnvironment); err != nil {
		return fmt.Errorf("%v%w", err, errors.Hide(charmerrors.PackageInstallFailure))
	}
	return nil
}
