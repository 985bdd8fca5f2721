// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package aptpkg_test

import (
	stdtesting "testing"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/utils/v4/exec"
	gc "gopkg.in/check.v1"

	"github.com/canonical/ubuntu-pro-charm/internal/aptpkg"
	charmerrors "github.com/canonical/ubuntu-pro-charm/internal/charmconfig/errors"
)

func Test(t *stdtesting.T) {
	gc.TestingT(t)
}

type managerSuite struct {
	testing.IsolationSuite
	stub    *stubRunner
	manager *aptpkg.Manager
}

var _ = gc.Suite(&managerSuite{})

type stubRunner struct {
	*testing.Stub
	code int
}

func (r *stubRunner) RunCommands(params exec.RunParams) (*exec.ExecResponse, error) {
	r.AddCall("RunCommands", params.Commands, params.Environment)
	if err := r.NextErr(); err != nil {
		return nil, err
	}
	return &exec.ExecResponse{Code: r.code, Stderr: []byte("apt failed")}, nil
}

func (s *managerSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.stub = &stubRunner{Stub: &testing.Stub{}}
	s.manager = aptpkg.NewManager(s.stub)
}

func (s *managerSuite) checkCommand(c *gc.C, command string) {
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{
			command, []string{"DEBIAN_FRONTEND=noninteractive"}}},
	})
}

func (s *managerSuite) TestAddRepository(c *gc.C) {
	c.Assert(s.manager.AddRepository("ppa:ua-client/stable"), jc.ErrorIsNil)
	s.checkCommand(c, `add-apt-repository --yes "ppa:ua-client/stable"`)
}

func (s *managerSuite) TestRemoveRepository(c *gc.C) {
	c.Assert(s.manager.RemoveRepository("ppa:ua-client/stable"), jc.ErrorIsNil)
	s.checkCommand(c, `add-apt-repository --yes --remove "ppa:ua-client/stable"`)
}

func (s *managerSuite) TestUpdate(c *gc.C) {
	c.Assert(s.manager.Update(), jc.ErrorIsNil)
	s.checkCommand(c,
		"apt-get --option=Dpkg::Options::=--force-confold --assume-yes --quiet update")
}

func (s *managerSuite) TestInstall(c *gc.C) {
	c.Assert(s.manager.Install(aptpkg.ClientPackage), jc.ErrorIsNil)
	s.checkCommand(c,
		"apt-get --option=Dpkg::Options::=--force-confold --assume-yes --quiet install ubuntu-advantage-tools")
}

func (s *managerSuite) TestRemove(c *gc.C) {
	c.Assert(s.manager.Remove(aptpkg.ClientPackage), jc.ErrorIsNil)
	s.checkCommand(c,
		"apt-get --option=Dpkg::Options::=--force-confold --assume-yes --quiet remove ubuntu-advantage-tools")
}

func (s *managerSuite) TestFailureMapsToPackageInstallFailure(c *gc.C) {
	s.stub.code = 100
	err := s.manager.Install(aptpkg.ClientPackage)
	c.Assert(err, jc.ErrorIs, charmerrors.PackageInstallFailure)
	c.Assert(err, gc.ErrorMatches, ".*apt failed.*")
}
