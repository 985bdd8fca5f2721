// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	stdtesting "testing"

	"github.com/juju/testing"
	gc "gopkg.in/check.v1"
)

func Test(t *stdtesting.T) {
	gc.TestingT(t)
}

type mainSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&mainSuite{})

func (s *mainSuite) TestHookNameFromDispatchPath(c *gc.C) {
	s.PatchEnvironment("JUJU_DISPATCH_PATH", "hooks/config-changed")
	c.Assert(hookName([]string{"dispatch"}), gc.Equals, "config-changed")
}

func (s *mainSuite) TestHookNameFromArgZero(c *gc.C) {
	s.PatchEnvironment("JUJU_DISPATCH_PATH", "")
	c.Assert(hookName([]string{"/var/lib/juju/agents/unit-pro-0/charm/hooks/install"}),
		gc.Equals, "install")
}
