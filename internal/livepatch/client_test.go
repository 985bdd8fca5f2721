// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package livepatch_test

import (
	stdtesting "testing"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/utils/v4/exec"
	gc "gopkg.in/check.v1"

	charmerrors "github.com/canonical/ubuntu-pro-charm/internal/charmconfig/errors"
	"github.com/canonical/ubuntu-pro-charm/internal/livepatch"
)

func Test(t *stdtesting.T) {
	gc.TestingT(t)
}

type clientSuite struct {
	testing.IsolationSuite
	stub   *stubRunner
	client *livepatch.Client
}

var _ = gc.Suite(&clientSuite{})

type stubRunner struct {
	*testing.Stub
	code   int
	stderr string
}

func (r *stubRunner) RunCommands(params exec.RunParams) (*exec.ExecResponse, error) {
	r.AddCall("RunCommands", params.Commands)
	if err := r.NextErr(); err != nil {
		return nil, err
	}
	return &exec.ExecResponse{Code: r.code, Stderr: []byte(r.stderr)}, nil
}

func (s *clientSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.stub = &stubRunner{Stub: &testing.Stub{}}
	s.client = livepatch.NewClient(s.stub)
}

func (s *clientSuite) TestInstall(c *gc.C) {
	c.Assert(s.client.Install(), jc.ErrorIsNil)
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{"snap 'install' 'canonical-livepatch'"}},
	})
}

func (s *clientSuite) TestSetServer(c *gc.C) {
	c.Assert(s.client.SetServer("https://livepatch.example.com"), jc.ErrorIsNil)
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{
			"canonical-livepatch 'config' 'remote-server=https://livepatch.example.com'"}},
	})
}

func (s *clientSuite) TestEnable(c *gc.C) {
	c.Assert(s.client.Enable("lp-token"), jc.ErrorIsNil)
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{"canonical-livepatch 'enable' 'lp-token'"}},
	})
}

func (s *clientSuite) TestEnableFailureRedactsToken(c *gc.C) {
	s.stub.code = 1
	s.stub.stderr = "cannot contact server"
	err := s.client.Enable("lp-token")
	c.Assert(err, jc.ErrorIs, charmerrors.ExternalToolFailure)
	c.Assert(err, gc.ErrorMatches, ".*cannot contact server.*")
	c.Assert(err.Error(), gc.Not(gc.Matches), "(?s).*lp-token.*")
}

func (s *clientSuite) TestDisable(c *gc.C) {
	c.Assert(s.client.Disable(), jc.ErrorIsNil)
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{"canonical-livepatch 'disable'"}},
	})
}

func (s *clientSuite) TestSetServerFailure(c *gc.C) {
	s.stub.code = 1
	s.stub.stderr = "bad server"
	err := s.client.SetServer("https://livepatch.example.com")
	c.Assert(err, jc.ErrorIs, charmerrors.ExternalToolFailure)
}
