// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookenv_test

import (
	stdtesting "testing"

	"github.com/juju/loggo"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/utils/v4/exec"
	gc "gopkg.in/check.v1"

	"github.com/canonical/ubuntu-pro-charm/internal/hookenv"
)

func Test(t *stdtesting.T) {
	gc.TestingT(t)
}

type hookenvSuite struct {
	testing.IsolationSuite
	stub *stubRunner
	ctx  *hookenv.Context
}

var _ = gc.Suite(&hookenvSuite{})

type stubRunner struct {
	*testing.Stub
	stdout string
	code   int
}

func (r *stubRunner) RunCommands(params exec.RunParams) (*exec.ExecResponse, error) {
	r.AddCall("RunCommands", params.Commands)
	if err := r.NextErr(); err != nil {
		return nil, err
	}
	return &exec.ExecResponse{Code: r.code, Stdout: []byte(r.stdout)}, nil
}

func (s *hookenvSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.stub = &stubRunner{Stub: &testing.Stub{}}
	s.ctx = hookenv.NewContext(s.stub)
}

func (s *hookenvSuite) TestConfig(c *gc.C) {
	s.stub.stdout = `{"token": "C1abcdef", "services": "esm-infra"}`
	options, err := s.ctx.Config()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(options, jc.DeepEquals, map[string]interface{}{
		"token":    "C1abcdef",
		"services": "esm-infra",
	})
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{"config-get '--format=json'"}},
	})
}

func (s *hookenvSuite) TestConfigEmpty(c *gc.C) {
	s.stub.stdout = "\n"
	options, err := s.ctx.Config()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(options, gc.HasLen, 0)
}

func (s *hookenvSuite) TestConfigToolFailure(c *gc.C) {
	s.stub.code = 1
	_, err := s.ctx.Config()
	c.Assert(err, gc.ErrorMatches, "reading charm config:.*")
}

func (s *hookenvSuite) TestSetStatus(c *gc.C) {
	err := s.ctx.SetStatus(hookenv.StatusBlocked, "No token configured")
	c.Assert(err, jc.ErrorIsNil)
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{"status-set 'blocked' 'No token configured'"}},
	})
}

func (s *hookenvSuite) TestStatePresent(c *gc.C) {
	s.stub.stdout = "token-digest: abc\n"
	value, found, err := s.ctx.State("applied-configuration")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(found, jc.IsTrue)
	c.Assert(value, gc.Equals, "token-digest: abc")
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{"state-get 'applied-configuration'"}},
	})
}

func (s *hookenvSuite) TestStateAbsent(c *gc.C) {
	s.stub.stdout = "\n"
	_, found, err := s.ctx.State("applied-configuration")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(found, jc.IsFalse)
}

func (s *hookenvSuite) TestSetState(c *gc.C) {
	err := s.ctx.SetState("applied-configuration", "ppa: ppa:ua-client/stable\n")
	c.Assert(err, jc.ErrorIsNil)
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{
			"state-set 'applied-configuration=ppa: ppa:ua-client/stable\n'"}},
	})
}

func (s *hookenvSuite) TestLog(c *gc.C) {
	err := s.ctx.Log("hello")
	c.Assert(err, jc.ErrorIsNil)
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{"juju-log 'hello'"}},
	})
}

func (s *hookenvSuite) TestLogWriter(c *gc.C) {
	writer := hookenv.NewLogWriter(s.stub)
	writer.Write(loggo.Entry{
		Level:   loggo.WARNING,
		Module:  "ubuntu-pro-charm.reconciler",
		Message: "attach attempt 1 failed",
	})
	s.stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "RunCommands", Args: []interface{}{
			"juju-log '--log-level' 'WARNING' 'ubuntu-pro-charm.reconciler: attach attempt 1 failed'"}},
	})
}
