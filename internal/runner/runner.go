// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package runner provides the command execution layer shared by every
// component that shells out to an external binary. All invocations of
// pro, canonical-livepatch, apt and the Juju hook tools go through a
// CommandRunner so that tests can substitute a stub.
package runner

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"github.com/juju/utils/v4/exec"
)

// CommandRunner runs a command on the local machine.
type CommandRunner interface {
	RunCommands(run exec.RunParams) (*exec.ExecResponse, error)
}

type defaultRunner struct{}

// Default returns a CommandRunner backed by the local shell.
func Default() CommandRunner {
	return &defaultRunner{}
}

func (*defaultRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	return exec.RunCommands(run)
}

// Command joins a binary name and its arguments into a single shell
// command, quoting each argument.
func Command(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, arg := range args {
		parts = append(parts, utils.ShQuote(arg))
	}
	return strings.Join(parts, " ")
}

// ExitError describes a command that ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stdout  string
	Stderr  string
}

// Error implements error. The command's own diagnostic output is
// included verbatim so the operator sees what the tool reported.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q failed [exit status %d]", e.Command, e.Code)
	if details := strings.TrimSpace(e.Stderr); details != "" {
		return msg + ": " + details
	}
	if details := strings.TrimSpace(e.Stdout); details != "" {
		return msg + ": " + details
	}
	return msg
}

// Run executes a single command through the runner and returns its
// standard output. A non-zero exit status is reported as *ExitError.
func Run(runner CommandRunner, command string, env []string) (string, error) {
	result, err := runner.RunCommands(exec.RunParams{
		Commands:    command,
		Environment: env,
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	if result.Code != 0 {
		return "", &ExitError{
			Command: command,
			Code:    result.Code,
			Stdout:  string(result.Stdout),
			Stderr:  string(result.Stderr),
		}
	}
	return string(result.Stdout), nil
}
