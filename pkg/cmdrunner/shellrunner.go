/*
Copyright 2017 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmdrunner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/samber/lo"
)

type ShellRunner struct {
	logger          logger.Logger
	shell           string
	killGracePeriod time.Duration
}

func NewShellRunner(parentLogger logger.Logger) (*ShellRunner, error) {
	return &ShellRunner{
		logger:          parentLogger.GetChild("runner"),
		shell:           "/bin/sh",
		killGracePeriod: DefaultKillGracePeriod,
	}, nil
}

func (sr *ShellRunner) Run(ctx context.Context,
	runOptions *RunOptions,
	format string,
	vars ...interface{}) (RunResult, error) {

	if runOptions == nil {
		runOptions = &RunOptions{}
	}

	formattedCommand := fmt.Sprintf(format, vars...)

	sr.logger.DebugWith("Executing", "command", formattedCommand, "environ", runOptions.Environ)

	// the shell leads its own process group so that whatever it starts is signalled with it
	cmd := exec.Command(sr.shell, "-c", formattedCommand)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Dir = runOptions.WorkingDir

	if runOptions.Env != nil || runOptions.Environ != nil {
		cmd.Env = buildEnv(runOptions)
	}

	startTime := time.Now()
	runResult, err := sr.runAndCaptureOutput(ctx, cmd, runOptions.CaptureOutputMode)
	runResult.Duration = time.Since(startTime)

	if err != nil {
		if exitError, isExitError := err.(*exec.ExitError); isExitError {
			runResult.ExitCode = exitError.ExitCode()
		}

		sr.logger.DebugWith("Command failed",
			"command", formattedCommand,
			"exitCode", runResult.ExitCode,
			"stderr", runResult.Stderr,
			"duration", runResult.Duration.String(),
			"err", err.Error())

		if ctx.Err() != nil {
			return runResult, errors.Wrap(ctx.Err(), "Command was terminated")
		}

		return runResult, errors.Wrapf(err, "Command failed (stderr: %s)", runResult.Stderr)
	}

	sr.logger.DebugWith("Command succeeded",
		"command", formattedCommand,
		"duration", runResult.Duration.String())

	return runResult, nil
}

// SetShell replaces the shell commands are run with
func (sr *ShellRunner) SetShell(shell string) {
	sr.shell = shell
}

// SetKillGracePeriod sets how long a cancelled command may take to exit before it is killed
func (sr *ShellRunner) SetKillGracePeriod(killGracePeriod time.Duration) {
	sr.killGracePeriod = killGracePeriod
}

func (sr *ShellRunner) runAndCaptureOutput(ctx context.Context,
	cmd *exec.Cmd,
	captureOutputMode CaptureOutputMode) (RunResult, error) {
	var stdout, stderr bytes.Buffer

	switch captureOutputMode {
	case CaptureOutputModeCombined:
		cmd.Stdout = &stdout
		cmd.Stderr = &stdout
	case CaptureOutputModeStdout:
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	default:
		return RunResult{}, errors.Errorf("Invalid output capture mode: %d", captureOutputMode)
	}

	err := sr.startAndWait(ctx, cmd)

	return RunResult{
		Output: stdout.String(),
		Stderr: stderr.String(),
	}, err
}

// startAndWait runs cmd to completion. Once ctx is done the process group gets SIGTERM, and
// SIGKILL if it is still around after the kill grace period
func (sr *ShellRunner) startAndWait(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	waitDone := make(chan struct{})
	defer close(waitDone)

	go func() {
		select {
		case <-waitDone:
			return
		case <-ctx.Done():
		}

		processGroupID := -cmd.Process.Pid
		syscall.Kill(processGroupID, syscall.SIGTERM) // nolint: errcheck

		select {
		case <-waitDone:
		case <-time.After(sr.killGracePeriod):
			sr.logger.DebugWith("Killing command process group", "pgid", -processGroupID)
			syscall.Kill(processGroupID, syscall.SIGKILL) // nolint: errcheck
		}
	}()

	return cmd.Wait()
}

// buildEnv returns the environment of a command: the worker's own unless Env replaces it,
// followed by Environ
func buildEnv(runOptions *RunOptions) []string {
	var env []string

	if runOptions.Env == nil {
		env = append(env, os.Environ()...)
	}

	env = append(env, lo.MapToSlice(runOptions.Env, func(name string, value string) string {
		return name + "=" + value
	})...)

	return append(env, runOptions.Environ...)
}
