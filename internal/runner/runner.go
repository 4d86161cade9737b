// Package runner executes external tools with an explicit environment.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Result represents the outcome of a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs a command to completion. env replaces the process environment
// entirely when non-nil.
type Runner interface {
	Run(ctx context.Context, command []string, env []string) (*Result, error)
}

// RawRunner runs an executable with a command line that reaches the child
// verbatim. cmd.exe parses its own command line and does not understand the
// C runtime quoting applied to ordinary argument lists.
type RawRunner interface {
	RunRaw(ctx context.Context, exe, cmdLine string, env []string) (*Result, error)
}

// CommandError describes a command that could not be started or exited
// unsuccessfully.
type CommandError struct {
	Cmd      string
	Stage    string // "start" or "wait"
	ExitCode int
	Cause    error
}

func (e *CommandError) Error() string {
	if e.Stage == "wait" {
		return fmt.Sprintf("%s exited with code %d: %v", e.Cmd, e.ExitCode, e.Cause)
	}
	return fmt.Sprintf("%s failed to %s: %v", e.Cmd, e.Stage, e.Cause)
}

func (e *CommandError) Unwrap() error { return e.Cause }

// OSRunner implements Runner with os/exec. The caller blocks until the child
// exits; only ctx cancellation interrupts it.
type OSRunner struct {
	// Dir is the working directory of the child; empty means the current one.
	Dir string
}

// Run executes command and buffers its output.
func (r OSRunner) Run(ctx context.Context, command []string, env []string) (*Result, error) {
	if len(command) == 0 {
		return nil, os.ErrInvalid
	}
	return r.run(exec.CommandContext(ctx, command[0], command[1:]...), env)
}

// RunRaw executes exe with cmdLine as its complete command line, including
// the program name. Only Windows passes a raw command line to a child.
func (r OSRunner) RunRaw(ctx context.Context, exe, cmdLine string, env []string) (*Result, error) {
	if exe == "" || cmdLine == "" {
		return nil, os.ErrInvalid
	}
	cmd := exec.CommandContext(ctx, exe)
	if err := setCmdLine(cmd, cmdLine); err != nil {
		return nil, &CommandError{Cmd: exe, Cause: err, Stage: "start"}
	}
	return r.run(cmd, env)
}

func (r OSRunner) run(cmd *exec.Cmd, env []string) (*Result, error) {
	name := cmd.Path
	if len(cmd.Args) > 0 {
		name = cmd.Args[0]
	}
	cmd.Dir = r.Dir
	cmd.Env = env
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Cmd: name, Cause: err, Stage: "start"}
	}

	res := &Result{}
	err := cmd.Wait()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if err != nil {
		res.ExitCode = exitCode(err)
		return res, &CommandError{Cmd: name, Cause: err, Stage: "wait", ExitCode: res.ExitCode}
	}
	return res, nil
}

// Output runs command and returns its stdout. A failed run still returns
// whatever stdout the command produced, and the error carries its stderr.
func Output(ctx context.Context, r Runner, command []string, env []string) (string, error) {
	return output(r.Run(ctx, command, env))
}

// RawOutput is Output for a raw command line.
func RawOutput(ctx context.Context, r RawRunner, exe, cmdLine string, env []string) (string, error) {
	return output(r.RunRaw(ctx, exe, cmdLine, env))
}

func output(res *Result, err error) (string, error) {
	if err != nil {
		if res == nil {
			return "", err
		}
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			return res.Stdout, fmt.Errorf("%w\n%s", err, stderr)
		}
		return res.Stdout, err
	}
	return res.Stdout, nil
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
