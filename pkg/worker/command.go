/*
Copyright 2023 The Nuclio Authors.

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

package worker

import (
	"strconv"
	"strings"

	"github.com/nuclio/taskworker/pkg/common"
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/errors"
)

// control tags, the leading token of every pipe message
const (
	InitTag        = "init"
	ExecuteTaskTag = "task"
	EndTaskTag     = "endTask"
	QuitTag        = "quit"
)

// NullToken marks an absent value on the wire
const NullToken = "null"

// UnboundToken marks an absent resource binding on the wire
const UnboundToken = "-"

// Command is a single decoded task invocation request
type Command struct {

	// set only for commands read from a pipe
	JobID      string
	JobOutPath string
	JobErrPath string

	Tracing       bool
	TaskID        string
	Debug         bool
	LogLevel      string
	StorageConf   string
	OperationType string

	Path           string
	Method         string
	TimeoutSeconds int
	SlaveNodes     []string
	ComputingUnits string
	HasTarget      bool
	ReturnType     string
	ReturnLength   int
	NumParameters  int
	Parameters     []*task.Parameter

	Resources *task.Resources
}

// HasReturn returns true if the task declared a return value
func (c *Command) HasReturn() bool {
	return c.ReturnType != NullToken
}

// StorageEnabled returns true if persistent storage was configured for the task
func (c *Command) StorageEnabled() bool {
	return c.StorageConf != "" && c.StorageConf != NullToken
}

// CommandParser turns argument vectors and pipe lines into commands
type CommandParser struct {
	codec *Codec
}

func NewCommandParser(codec *Codec) *CommandParser {
	return &CommandParser{
		codec: codec,
	}
}

// ParseTaskLine parses a "task" line read from a control pipe:
// task <job_id> <job_out> <job_err> <tracing> <task_id> <debug> <storage_conf> <operation_type>
// <descriptor...> <binded_cpus> <binded_gpus> <host_list>
func (cp *CommandParser) ParseTaskLine(line string) (*Command, error) {
	fields := strings.Fields(line)

	if len(fields) == 0 || fields[0] != ExecuteTaskTag {
		return nil, errors.Errorf("Expected a %s line, got: %s", ExecuteTaskTag, line)
	}

	// tag, 8 header fields, the minimal descriptor and 3 resource fields
	if len(fields) < 1+8+descriptorMinLength+3 {
		return nil, errors.Errorf("Task line is too short (%d fields)", len(fields))
	}

	resources, err := ParseResources(fields[len(fields)-3], fields[len(fields)-2], fields[len(fields)-1])
	if err != nil {
		return nil, errors.Wrap(err, "Failed to parse resource bindings")
	}

	command := &Command{
		JobID:         fields[1],
		JobOutPath:    fields[2],
		JobErrPath:    fields[3],
		Tracing:       fields[4] == "true",
		TaskID:        fields[5],
		Debug:         fields[6] == "true",
		StorageConf:   fields[7],
		OperationType: fields[8],
		Resources:     resources,
	}

	if err := cp.parseDescriptor(command, fields[9:len(fields)-3]); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse task %s of job %s", command.TaskID, command.JobID)
	}

	return command, nil
}

// ParseArguments parses the argument vector of a one-shot worker:
// <tracing> <task_id> <log_level> <storage_conf> <operation_type> <descriptor...>
func (cp *CommandParser) ParseArguments(args []string) (*Command, error) {
	if len(args) < 5+descriptorMinLength {
		return nil, errors.Errorf("Expected at least %d arguments, got %d", 5+descriptorMinLength, len(args))
	}

	command := &Command{
		Tracing:       args[0] == "true",
		TaskID:        args[1],
		LogLevel:      args[2],
		Debug:         args[2] == "debug",
		StorageConf:   args[3],
		OperationType: args[4],
		Resources:     &task.Resources{},
	}

	if err := cp.parseDescriptor(command, args[5:]); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse task %s", command.TaskID)
	}

	return command, nil
}

// path, method, timeout, num slaves, computing units, has target, return type, return length, num params
const descriptorMinLength = 9

// parseDescriptor parses everything from the module path onwards:
// <path> <method> <timeout> <num_slaves> <slaves...> <computing_units> <has_target>
// <return_type> <return_length> <num_params> <params...>
func (cp *CommandParser) parseDescriptor(command *Command, fields []string) error {
	if len(fields) < descriptorMinLength {
		return errors.Errorf("Task descriptor is too short (%d fields)", len(fields))
	}

	command.Path = fields[0]
	command.Method = fields[1]

	timeoutSeconds, err := strconv.Atoi(fields[2])
	if err != nil {
		return errors.Wrapf(err, "Invalid timeout: %s", fields[2])
	}

	if timeoutSeconds < 0 {
		timeoutSeconds = 0
	}

	command.TimeoutSeconds = timeoutSeconds

	numSlaves, err := strconv.Atoi(fields[3])
	if err != nil || numSlaves < 0 {
		return errors.Errorf("Invalid number of slave nodes: %s", fields[3])
	}

	if len(fields) < descriptorMinLength+numSlaves {
		return errors.Errorf("Task descriptor is too short for %d slave nodes", numSlaves)
	}

	command.SlaveNodes = append([]string{}, fields[4:4+numSlaves]...)
	position := 4 + numSlaves

	command.ComputingUnits = fields[position]
	command.HasTarget = fields[position+1] == "true"
	command.ReturnType = fields[position+2]

	command.ReturnLength, err = strconv.Atoi(fields[position+3])
	if err != nil || command.ReturnLength < 0 {
		return errors.Errorf("Invalid return length: %s", fields[position+3])
	}

	command.NumParameters, err = strconv.Atoi(fields[position+4])
	if err != nil || command.NumParameters < 0 {
		return errors.Errorf("Invalid number of parameters: %s", fields[position+4])
	}

	command.Parameters, err = cp.codec.Decode(fields[position+5:], command.NumParameters)
	if err != nil {
		return errors.Wrap(err, "Failed to decode parameters")
	}

	if command.Resources != nil {
		command.Resources.ComputingUnits = command.ComputingUnits
		command.Resources.SlaveNodes = command.SlaveNodes
	}

	return nil
}

// ParseResources parses the resource binding fields of a pipe command, where "-" means unbound
func ParseResources(boundCPUs string, boundGPUs string, hostList string) (*task.Resources, error) {
	resources := &task.Resources{}

	var err error

	if boundCPUs != UnboundToken {
		resources.BoundCPUs, err = common.StringSliceToIntSlice(strings.Split(boundCPUs, ","))
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid bound CPUs: %s", boundCPUs)
		}
	}

	if boundGPUs != UnboundToken {
		resources.BoundGPUs, err = common.StringSliceToIntSlice(strings.Split(boundGPUs, ","))
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid bound GPUs: %s", boundGPUs)
		}
	}

	if hostList != UnboundToken {
		resources.HostList = hostList
	}

	return resources, nil
}

// ParseJobID extracts the job id from a task line without decoding it, so that a failed
// line can still be answered
func ParseJobID(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != ExecuteTaskTag {
		return "", false
	}

	return fields[1], true
}
