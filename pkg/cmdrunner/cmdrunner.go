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
	"context"
	"time"
)

type CaptureOutputMode int

const (
	CaptureOutputModeCombined CaptureOutputMode = iota
	CaptureOutputModeStdout
)

// DefaultKillGracePeriod is how long a cancelled command may take to exit after SIGTERM
const DefaultKillGracePeriod = 2 * time.Second

// RunOptions specifies options to CmdRunner.Run
type RunOptions struct {
	WorkingDir string

	// replaces the environment of the command
	Env map[string]string

	// KEY=VALUE pairs added to the environment of the command. When Env is nil they are added
	// to the environment of the worker
	Environ []string

	CaptureOutputMode CaptureOutputMode
}

type RunResult struct {
	Output   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CmdRunner runs shell commands on behalf of tasks
type CmdRunner interface {

	// Run runs a command, given options. Once ctx is done the command and everything it
	// started are terminated
	Run(ctx context.Context, runOptions *RunOptions, format string, vars ...interface{}) (RunResult, error)
}
