//go:build test_unit

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

package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/nuclio/taskworker/pkg/cmdrunner"
	"github.com/nuclio/taskworker/pkg/serializer"
	"github.com/nuclio/taskworker/pkg/storage"
	"github.com/nuclio/taskworker/pkg/storage/file"
	"github.com/nuclio/taskworker/pkg/task"
	"github.com/nuclio/taskworker/pkg/worker"

	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type BuiltinTestSuite struct {
	suite.Suite
	logger     logger.Logger
	parser     *worker.CommandParser
	mockRunner *cmdrunner.MockRunner
	registry   *task.Registry
	tempDir    string
}

func (suite *BuiltinTestSuite) SetupSuite() {
	var err error

	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)

	suite.parser = worker.NewCommandParser(worker.NewCodec(suite.logger))
}

func (suite *BuiltinTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
	suite.mockRunner = cmdrunner.NewMockRunner()
	suite.registry = task.NewRegistry()
	suite.Require().NoError(Register(suite.registry, suite.mockRunner))
}

func (suite *BuiltinTestSuite) TestRegister() {
	definitions := suite.registry.GetDefinitions()
	suite.Require().Len(definitions, 7)

	definition, err := suite.registry.Resolve(CounterPath, "increment")
	suite.Require().NoError(err)
	suite.Require().Equal(task.KindMethod, definition.Kind)
	suite.Require().Equal("1", definition.CoreElement.ImplementationConstraints["ComputingUnits"])
	suite.Require().IsType(&Counter{}, definition.NewTarget())

	definition, err = suite.registry.Resolve(Path, "echo")
	suite.Require().NoError(err)
	suite.Require().True(definition.CoreElement.ImplementationIO)

	// registering twice fails
	suite.Require().Error(Register(suite.registry, suite.mockRunner))
}

func (suite *BuiltinTestSuite) TestAdd() {
	for _, testCase := range []struct {
		name          string
		parameters    []string
		expectedTypes []task.ParameterType
		expectedSum   interface{}
		expectedLine  string
	}{
		{
			name:          "Integers",
			parameters:    []string{"4 3 null a 3", "5 3 null b 4"},
			expectedTypes: []task.ParameterType{task.ParameterTypeInt, task.ParameterTypeLong},
			expectedSum:   int64(7),
			expectedLine:  "endTask 1 0 3 4 3 5 4",
		},
		{
			name:          "Mixed",
			parameters:    []string{"7 3 null a 1.5", "4 3 null b 2"},
			expectedTypes: []task.ParameterType{task.ParameterTypeDouble, task.ParameterTypeInt},
			expectedSum:   3.5,
			expectedLine:  "endTask 1 0 3 7 1.5 4 2",
		},
		{
			name:          "Wide",
			parameters:    []string{"5 3 null a 4294967296", "4 3 null b 1"},
			expectedTypes: []task.ParameterType{task.ParameterTypeLong, task.ParameterTypeInt},
			expectedSum:   int64(4294967297),
			expectedLine:  "endTask 1 0 3 5 4294967296 4 1",
		},
	} {
		suite.Run(testCase.name, func() {
			returnPath := filepath.Join(suite.tempDir, "add-"+testCase.name)

			command, outcome := suite.invoke("null", Path, "add", 0, false, 1,
				append(testCase.parameters, "9 3 null $return_0 "+returnPath)...)

			suite.Require().Equal(worker.ExitCodeSuccess, outcome.ExitCode, outcome.Err)
			suite.Require().Equal(testCase.expectedTypes, outcome.ResultTypes)
			suite.Require().Equal(testCase.expectedLine, worker.EncodeEndTask("1", command, outcome))

			switch testCase.expectedSum.(type) {
			case int64:
				var sum int64
				_, err := serializer.DeserializeFromFile(returnPath, &sum)
				suite.Require().NoError(err)
				suite.Require().Equal(testCase.expectedSum, sum)
			case float64:
				var sum float64
				_, err := serializer.DeserializeFromFile(returnPath, &sum)
				suite.Require().NoError(err)
				suite.Require().Equal(testCase.expectedSum, sum)
			}
		})
	}
}

func (suite *BuiltinTestSuite) TestAddRejectsStrings() {
	_, outcome := suite.invoke("null", Path, "add", 0, false, 0,
		"4 3 null a 1", "8 3 null b 1 "+worker.EncodeString("two"))

	suite.Require().Equal(worker.ExitCodeFailure, outcome.ExitCode)
}

func (suite *BuiltinTestSuite) TestEcho() {
	returnPath := filepath.Join(suite.tempDir, "echo")

	command, err := suite.parse("null", Path, "echo", 0, false, 1,
		"8 3 null s 1 "+worker.EncodeString("hello world"),
		"0 3 null b true",
		"9 3 null $return_0 "+returnPath)
	suite.Require().NoError(err)

	var stdout bytes.Buffer
	outcome := worker.NewInvoker(suite.logger, suite.registry, nil).Invoke(context.Background(),
		command,
		&worker.InvokeOptions{Stdout: &stdout})

	suite.Require().Equal(worker.ExitCodeSuccess, outcome.ExitCode, outcome.Err)
	suite.Require().Equal("hello world true\n", stdout.String())
	suite.Require().Equal([]interface{}{"hello world", true}, outcome.ResultValues)

	var line string
	_, err = serializer.DeserializeFromFile(returnPath, &line)
	suite.Require().NoError(err)
	suite.Require().Equal("hello world true", line)
}

func (suite *BuiltinTestSuite) TestSleep() {
	_, outcome := suite.invoke("null", Path, "sleep", 0, false, 0, "7 3 null seconds 0.01")
	suite.Require().Equal(worker.ExitCodeSuccess, outcome.ExitCode, outcome.Err)

	_, outcome = suite.invoke("null", Path, "sleep", 1, false, 0, "4 3 null seconds 10")
	suite.Require().Equal(worker.ExitCodeTimedOut, outcome.ExitCode)
}

func (suite *BuiltinTestSuite) TestShellGetsResourceEnvironment() {
	command, err := suite.parse("null", Path, "shell", 0, false, 0, "8 3 null cmd 1 "+worker.EncodeString("hostname -f"))
	suite.Require().NoError(err)

	command.Resources.HostList = "node1,node2"

	suite.mockRunner.
		On("Run",
			mock.Anything,
			mock.MatchedBy(func(runOptions *cmdrunner.RunOptions) bool {
				return len(runOptions.Environ) == 1 && runOptions.Environ[0] == "COMPSS_HOSTNAMES=node1,node2"
			}),
			"%s",
			[]interface{}{"hostname -f"}).
		Return(cmdrunner.RunResult{Output: "node1\n", Stderr: "warning\n"}, nil).
		Once()

	var stdout, stderr bytes.Buffer
	outcome := worker.NewInvoker(suite.logger, suite.registry, nil).Invoke(context.Background(),
		command,
		&worker.InvokeOptions{Stdout: &stdout, Stderr: &stderr})

	suite.Require().Equal(worker.ExitCodeSuccess, outcome.ExitCode, outcome.Err)
	suite.Require().Equal("node1\n", stdout.String())
	suite.Require().Equal("warning\n", stderr.String())
	suite.mockRunner.AssertExpectations(suite.T())
}

func (suite *BuiltinTestSuite) TestShellFailure() {
	suite.mockRunner.
		On("Run", mock.Anything, mock.Anything, "%s", []interface{}{"false"}).
		Return(cmdrunner.RunResult{ExitCode: 1}, fmt.Errorf("exit status 1")).
		Once()

	_, outcome := suite.invoke("null", Path, "shell", 0, false, 0, "8 3 null cmd 1 "+worker.EncodeString("false"))
	suite.Require().Equal(worker.ExitCodeFailure, outcome.ExitCode)
}

func (suite *BuiltinTestSuite) TestShellWithRealRunner() {
	shellRunner, err := cmdrunner.NewShellRunner(suite.logger)
	suite.Require().NoError(err)

	registry := task.NewRegistry()
	suite.Require().NoError(Register(registry, shellRunner))

	returnPath := filepath.Join(suite.tempDir, "shell")

	command, err := suite.parse("null", Path, "shell", 0, false, 1,
		"8 3 null cmd 1 "+worker.EncodeString("echo $COMPSS_HOSTNAMES"),
		"9 3 null $return_0 "+returnPath)
	suite.Require().NoError(err)

	command.Resources.HostList = "node1"

	outcome := worker.NewInvoker(suite.logger, registry, nil).Invoke(context.Background(), command, nil)
	suite.Require().Equal(worker.ExitCodeSuccess, outcome.ExitCode, outcome.Err)

	var output string
	_, err = serializer.DeserializeFromFile(returnPath, &output)
	suite.Require().NoError(err)
	suite.Require().Equal("node1\n", output)
}

func (suite *BuiltinTestSuite) TestCounterInFile() {
	counterPath := filepath.Join(suite.tempDir, "counter")
	returnPath := filepath.Join(suite.tempDir, "value")

	// class scoped, no target
	_, outcome := suite.invoke("null", CounterPath, "create", 0, false, 1,
		"4 3 null initial 5",
		"9 3 null $return_0 "+counterPath)
	suite.Require().Equal(worker.ExitCodeSuccess, outcome.ExitCode, outcome.Err)

	// the callee precedes the return slot
	command, outcome := suite.invoke("null", CounterPath, "increment", 0, true, 1,
		"4 3 null by 2",
		"9 3 null self "+counterPath,
		"9 3 null $return_0 "+returnPath)
	suite.Require().Equal(worker.ExitCodeSuccess, outcome.ExitCode, outcome.Err)
	suite.Require().Equal(task.TargetUpdatePolicyInOut, outcome.TargetUpdatePolicy)
	suite.Require().Equal("endTask 1 0 3 4 2", worker.EncodeEndTask("1", command, outcome))

	counter := &Counter{}
	_, err := serializer.DeserializeFromFile(counterPath, counter)
	suite.Require().NoError(err)
	suite.Require().Equal(int64(7), counter.Value)

	var value int64
	_, err = serializer.DeserializeFromFile(returnPath, &value)
	suite.Require().NoError(err)
	suite.Require().Equal(int64(7), value)

	// get leaves the file alone
	_, outcome = suite.invoke("null", CounterPath, "get", 0, true, 1,
		"9 3 null self "+counterPath,
		"9 3 null $return_0 "+returnPath)
	suite.Require().Equal(worker.ExitCodeSuccess, outcome.ExitCode, outcome.Err)
	suite.Require().Equal(task.TargetUpdatePolicyNone, outcome.TargetUpdatePolicy)
}

func (suite *BuiltinTestSuite) TestCounterInStorage() {
	configPath := filepath.Join(suite.tempDir, "storage.yaml")
	configuration := fmt.Sprintf("kind: file\nattributes:\n  rootPath: %s\n", filepath.Join(suite.tempDir, "objects"))
	suite.Require().NoError(os.WriteFile(configPath, []byte(configuration), 0644))

	storageInstance, err := storage.RegistrySingleton.NewStorage(suite.logger, configPath)
	suite.Require().NoError(err)

	fileStorage := storageInstance.(*file.Storage)
	suite.Require().NoError(fileStorage.Put("counter-1", &Counter{Object: storage.Object{ID: "counter-1"}, Value: 1}))

	args := []string{"false", "1", "debug", configPath, "METHOD",
		CounterPath, "increment", "0", "0", "1", "true", "null", "0", "1",
		"12", "3", "null", "self", "counter-1", "2"}

	command, err := suite.parser.ParseArguments(args)
	suite.Require().NoError(err)

	outcome := worker.NewInvoker(suite.logger, suite.registry, storageInstance).Invoke(context.Background(), command, nil)
	suite.Require().Equal(worker.ExitCodeSuccess, outcome.ExitCode, outcome.Err)

	counter, err := fileStorage.GetByID("counter-1", &Counter{})
	suite.Require().NoError(err)
	suite.Require().Equal(int64(2), counter.(*Counter).Value)
	suite.Require().NoError(fileStorage.Finish())
}

func (suite *BuiltinTestSuite) invoke(storageConf string,
	path string,
	method string,
	timeoutSeconds int,
	hasTarget bool,
	returnLength int,
	parameters ...string) (*worker.Command, *worker.Outcome) {

	command, err := suite.parse(storageConf, path, method, timeoutSeconds, hasTarget, returnLength, parameters...)
	suite.Require().NoError(err)

	return command, worker.NewInvoker(suite.logger, suite.registry, nil).Invoke(context.Background(), command, nil)
}

func (suite *BuiltinTestSuite) parse(storageConf string,
	path string,
	method string,
	timeoutSeconds int,
	hasTarget bool,
	returnLength int,
	parameters ...string) (*worker.Command, error) {

	var parameterFields []string
	for _, parameter := range parameters {
		parameterFields = append(parameterFields, strings.Fields(parameter)...)
	}

	returnType := "null"
	if returnLength > 0 {
		returnType = "object"
	}

	args := []string{
		"false", "1", "debug", storageConf, "METHOD",
		path, method, strconv.Itoa(timeoutSeconds), "0", "1",
		strconv.FormatBool(hasTarget), returnType, strconv.Itoa(returnLength), strconv.Itoa(len(parameters)),
	}

	return suite.parser.ParseArguments(append(args, parameterFields...))
}

func TestBuiltinTestSuite(t *testing.T) {
	suite.Run(t, new(BuiltinTestSuite))
}
