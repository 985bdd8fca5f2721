// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// ubuntu-pro-charm is the hook entrypoint. Juju invokes it through
// the charm's dispatch script for every hook kind; the hook name is
// carried in JUJU_DISPATCH_PATH.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/canonical/ubuntu-pro-charm/internal/aptpkg"
	"github.com/canonical/ubuntu-pro-charm/internal/charm"
	"github.com/canonical/ubuntu-pro-charm/internal/hookenv"
	"github.com/canonical/ubuntu-pro-charm/internal/livepatch"
	"github.com/canonical/ubuntu-pro-charm/internal/procli"
	"github.com/canonical/ubuntu-pro-charm/internal/reconciler"
	"github.com/canonical/ubuntu-pro-charm/internal/runner"
)

var logger = loggo.GetLogger("ubuntu-pro-charm")

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	commandRunner := runner.Default()
	if _, err := loggo.ReplaceDefaultWriter(hookenv.NewLogWriter(commandRunner)); err != nil {
		return errors.Trace(err)
	}
	pro := procli.NewClient(commandRunner, clock.WallClock)
	rec, err := reconciler.New(reconciler.Config{
		Pro:       pro,
		Livepatch: livepatch.NewClient(commandRunner),
		Packages:  aptpkg.NewManager(commandRunner),
		Logger:    loggo.GetLogger("ubuntu-pro-charm.reconciler"),
	})
	if err != nil {
		return errors.Trace(err)
	}
	ch, err := charm.New(charm.Config{
		Hook:       hookenv.NewContext(commandRunner),
		Reconciler: rec,
		Pro:        pro,
		Clock:      clock.WallClock,
		Logger:     logger,
	})
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ch.RunHook(hookName(args)))
}

// hookName resolves which hook is being dispatched. Modern agents set
// JUJU_DISPATCH_PATH (e.g. "hooks/config-changed") when running the
// dispatch entrypoint; older agents execute a hooks/<name> symlink
// directly.
func hookName(args []string) string {
	if path := os.Getenv("JUJU_DISPATCH_PATH"); path != "" {
		return filepath.Base(path)
	}
	return filepath.Base(args[0])
}
