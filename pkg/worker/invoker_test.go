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

package worker

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nuclio/taskworker/pkg/serializer"
	"github.com/nuclio/taskworker/pkg/storage"
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type testCounter struct {
	storage.Object
	Value int
}

type mockStorage struct {
	mock.Mock
}

func (ms *mockStorage) Init(configPath string) error {
	return ms.Called(configPath).Error(0)
}

func (ms *mockStorage) Finish() error {
	return ms.Called().Error(0)
}

func (ms *mockStorage) GetByID(key string, target interface{}) (interface{}, error) {
	args := ms.Called(key, target)
	return args.Get(0), args.Error(1)
}

func (ms *mockStorage) TaskContext(loggerInstance logger.Logger,
	parameters []*task.Parameter,
	configPath string) (storage.ReleaseFunc, error) {
	args := ms.Called(loggerInstance, parameters, configPath)
	return args.Get(0).(storage.ReleaseFunc), args.Error(1)
}

type InvokerTestSuite struct {
	suite.Suite
	logger   logger.Logger
	registry *task.Registry
	parser   *CommandParser
	tempDir  string
	ctx      context.Context
}

func (suite *InvokerTestSuite) SetupSuite() {
	var err error

	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)

	suite.parser = NewCommandParser(NewCodec(suite.logger))
	suite.ctx = context.Background()
	suite.registry = task.NewRegistry()

	suite.register("app.math", "add", task.KindFunction, nil,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			sum := 0
			for _, parameter := range parameters {
				if value, isInt := parameter.Content.(int); isInt {
					sum += value
				}
			}

			return &task.Output{
				Types:  []task.ParameterType{task.ParameterTypeInt},
				Values: []interface{}{sum},
			}, nil
		})

	suite.register("app.math", "sleep", task.KindFunction, nil,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			time.Sleep(5 * time.Second)
			return &task.Output{}, nil
		})

	suite.register("app.math", "fail", task.KindFunction, nil,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			return nil, errors.New("Something bad happened")
		})

	suite.register("app.math", "attribute", task.KindFunction, nil,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			var missing *testCounter
			return missing.Value, nil
		})

	suite.register("app.math", "wrapped", task.KindFunction, nil,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			return []interface{}{
				task.Output{
					Types:  []task.ParameterType{task.ParameterTypeBoolean},
					Values: []interface{}{true},
				},
				"decorator result",
			}, nil
		})

	suite.register("app.math", "doublyWrapped", task.KindFunction, nil,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			return []interface{}{[]interface{}{&task.Output{}}}, nil
		})

	suite.register("app.math", "mismatched", task.KindFunction, nil,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			return &task.Output{Types: []task.ParameterType{task.ParameterTypeInt}}, nil
		})

	suite.register("app.math", "keywords", task.KindFunction, nil,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			if !context.RuntimeOriginated || context.ReturnLength != 1 || context.ProcessName != "worker-0" {
				return nil, errors.New("Unexpected keywords")
			}

			context.Logger.InfoWith("Running", "tracing", context.Tracing)
			context.Stdout.Write([]byte("to stdout")) // nolint: errcheck

			return &task.Output{}, nil
		})

	newCounter := func() interface{} {
		return &testCounter{}
	}

	suite.register("app.Counter", "increment", task.KindMethod, newCounter,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			counter := parameters[0].Content.(*testCounter)
			counter.Value++

			return &task.Output{
				Types:              []task.ParameterType{task.ParameterTypeInt},
				Values:             []interface{}{counter.Value},
				TargetUpdatePolicy: task.TargetUpdatePolicyInOut,
			}, nil
		})

	suite.register("app.Counter", "peek", task.KindMethod, newCounter,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			counter := parameters[0].Content.(*testCounter)
			counter.Value = 100

			return &task.Output{}, nil
		})

	suite.register("app.Counter", "create", task.KindMethod, newCounter,
		func(context *task.Context, parameters []*task.Parameter, types []task.ParameterType) (interface{}, error) {
			if len(types) == 0 || types[len(types)-1] != task.ParameterTypeNull {
				return nil, errors.New("Expected a class receiver placeholder")
			}

			return &task.Output{}, nil
		})
}

func (suite *InvokerTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *InvokerTestSuite) TestAdd() {
	command := suite.parse("null", "app.math", "add", 0, false, "int", 1,
		"4 3 null a 3", "4 3 null b 4")

	outcome := NewInvoker(suite.logger, suite.registry, nil).Invoke(suite.ctx, command, nil)
	suite.Require().Equal(ExitCodeSuccess, outcome.ExitCode)
	suite.Require().Equal([]task.ParameterType{task.ParameterTypeInt}, outcome.ResultTypes)
	suite.Require().Equal([]interface{}{7}, outcome.ResultValues)
	suite.Require().Equal("endTask 1 0 2 4 7", EncodeEndTask("1", command, outcome))
}

func (suite *InvokerTestSuite) TestTimeout() {
	command := suite.parse("null", "app.math", "sleep", 1, false, "null", 0)

	startTime := time.Now()
	outcome := NewInvoker(suite.logger, suite.registry, nil).Invoke(suite.ctx, command, nil)

	suite.Require().Less(time.Since(startTime), 3*time.Second)
	suite.Require().Equal(ExitCodeTimedOut, outcome.ExitCode)
	suite.Require().Empty(outcome.ResultTypes)
	suite.Require().Empty(outcome.ResultValues)
	suite.Require().IsType(&TimedOutError{}, outcome.Err)
}

func (suite *InvokerTestSuite) TestFailures() {
	for _, testCase := range []struct {
		name   string
		path   string
		method string
	}{
		{name: "UserError", path: "app.math", method: "fail"},
		{name: "AttributeError", path: "app.math", method: "attribute"},
		{name: "Unresolved", path: "app.math", method: "missing"},
		{name: "UnresolvedModule", path: "other", method: "add"},
		{name: "DoublyWrapped", path: "app.math", method: "doublyWrapped"},
		{name: "MismatchedOutput", path: "app.math", method: "mismatched"},
	} {
		suite.Run(testCase.name, func() {
			command := suite.parse("null", testCase.path, testCase.method, 0, false, "null", 0)

			outcome := NewInvoker(suite.logger, suite.registry, nil).Invoke(suite.ctx, command, nil)
			suite.Require().Equal(ExitCodeFailure, outcome.ExitCode)
			suite.Require().Empty(outcome.ResultTypes)
			suite.Require().Empty(outcome.ResultValues)
			suite.Require().Error(outcome.Err)
		})
	}
}

func (suite *InvokerTestSuite) TestWrappedOutputIsUnwrappedOnce() {
	command := suite.parse("null", "app.math", "wrapped", 0, false, "null", 0)

	outcome := NewInvoker(suite.logger, suite.registry, nil).Invoke(suite.ctx, command, nil)
	suite.Require().Equal(ExitCodeSuccess, outcome.ExitCode)
	suite.Require().Equal([]interface{}{true}, outcome.ResultValues)
}

func (suite *InvokerTestSuite) TestKeywords() {
	command := suite.parse("null", "app.math", "keywords", 0, false, "int", 1)

	var stdout bytes.Buffer
	outcome := NewInvoker(suite.logger, suite.registry, nil).Invoke(suite.ctx, command, &InvokeOptions{
		ProcessName: "worker-0",
		Stdout:      &stdout,
	})

	suite.Require().Equal(ExitCodeSuccess, outcome.ExitCode)
	suite.Require().Equal("to stdout", stdout.String())
}

func (suite *InvokerTestSuite) TestInOutCalleeIsWrittenBack() {
	path := filepath.Join(suite.tempDir, "counter")
	suite.Require().NoError(serializer.SerializeToFile(&testCounter{Value: 1}, path))

	// the callee precedes the return slot and carries a transport prefix
	command := suite.parse("null", "app.Counter", "increment", 0, true, "int", 1,
		"9 3 null self localhost:"+path, "9 3 null $return_0 "+filepath.Join(suite.tempDir, "ret"))

	outcome := NewInvoker(suite.logger, suite.registry, nil).Invoke(suite.ctx, command, nil)
	suite.Require().Equal(ExitCodeSuccess, outcome.ExitCode)
	suite.Require().Equal(task.TargetUpdatePolicyInOut, outcome.TargetUpdatePolicy)
	suite.Require().Equal([]interface{}{2}, outcome.ResultValues)
	suite.Require().Equal("endTask 1 0 3 4 2", EncodeEndTask("1", command, outcome))

	counter, err := serializer.DeserializeFromFile(path, &testCounter{})
	suite.Require().NoError(err)
	suite.Require().Equal(2, counter.(*testCounter).Value)
}

func (suite *InvokerTestSuite) TestInCalleeIsNotWrittenBack() {
	path := filepath.Join(suite.tempDir, "counter")
	suite.Require().NoError(serializer.SerializeToFile(&testCounter{Value: 1}, path))

	command := suite.parse("null", "app.Counter", "peek", 0, true, "null", 0, "9 3 null self "+path)

	outcome := NewInvoker(suite.logger, suite.registry, nil).Invoke(suite.ctx, command, nil)
	suite.Require().Equal(ExitCodeSuccess, outcome.ExitCode)

	counter, err := serializer.DeserializeFromFile(path, &testCounter{})
	suite.Require().NoError(err)
	suite.Require().Equal(1, counter.(*testCounter).Value)
}

func (suite *InvokerTestSuite) TestMissingCalleeFile() {
	command := suite.parse("null", "app.Counter", "increment", 0, true, "null", 0,
		"9 3 null self "+filepath.Join(suite.tempDir, "missing"))

	outcome := NewInvoker(suite.logger, suite.registry, nil).Invoke(suite.ctx, command, nil)
	suite.Require().Equal(ExitCodeFailure, outcome.ExitCode)
}

func (suite *InvokerTestSuite) TestClassScopedWithoutTarget() {
	command := suite.parse("null", "app.Counter", "create", 0, false, "null", 0, "4 3 null a 1")

	outcome := NewInvoker(suite.logger, suite.registry, nil).Invoke(suite.ctx, command, nil)
	suite.Require().Equal(ExitCodeSuccess, outcome.ExitCode)
}

func (suite *InvokerTestSuite) TestPersistentCallee() {
	storageInstance := &mockStorage{}
	released := false

	storageInstance.
		On("GetByID", "counter-1", mock.AnythingOfType("*worker.testCounter")).
		Return(&testCounter{Object: storage.Object{ID: "counter-1"}, Value: 5}, nil).
		Once()

	storageInstance.
		On("TaskContext", mock.Anything, mock.MatchedBy(func(parameters []*task.Parameter) bool {
			return len(parameters) == 1 && parameters[0].GetType() == task.ParameterTypeExternalPSCO
		}), "/tmp/storage.yaml").
		Return(storage.ReleaseFunc(func(aborted bool) error {
			released = !aborted
			return nil
		}), nil).
		Once()

	command := suite.parse("/tmp/storage.yaml", "app.Counter", "increment", 0, true, "null", 0,
		"12 3 null self counter-1 W")

	outcome := NewInvoker(suite.logger, suite.registry, storageInstance).Invoke(suite.ctx, command, nil)
	suite.Require().Equal(ExitCodeSuccess, outcome.ExitCode)
	suite.Require().Equal([]interface{}{6}, outcome.ResultValues)
	suite.Require().True(released)

	storageInstance.AssertExpectations(suite.T())
}

func (suite *InvokerTestSuite) TestPersistentCalleeWithoutStorage() {
	command := suite.parse("null", "app.Counter", "increment", 0, true, "null", 0,
		"12 3 null self counter-1 W")

	outcome := NewInvoker(suite.logger, suite.registry, nil).Invoke(suite.ctx, command, nil)
	suite.Require().Equal(ExitCodeFailure, outcome.ExitCode)
}

func (suite *InvokerTestSuite) TestStorageContextReleasedOnFailure() {
	storageInstance := &mockStorage{}
	released := false

	storageInstance.
		On("TaskContext", mock.Anything, mock.Anything, "/tmp/storage.yaml").
		Return(storage.ReleaseFunc(func(aborted bool) error {
			released = !aborted
			return nil
		}), nil).
		Once()

	command := suite.parse("/tmp/storage.yaml", "app.math", "fail", 0, false, "null", 0)

	outcome := NewInvoker(suite.logger, suite.registry, storageInstance).Invoke(suite.ctx, command, nil)
	suite.Require().Equal(ExitCodeFailure, outcome.ExitCode)
	suite.Require().True(released)
}

func (suite *InvokerTestSuite) TestStorageContextAbortedOnTimeout() {
	storageInstance := &mockStorage{}
	var releases []bool

	storageInstance.
		On("TaskContext", mock.Anything, mock.Anything, "/tmp/storage.yaml").
		Return(storage.ReleaseFunc(func(aborted bool) error {
			releases = append(releases, aborted)
			return nil
		}), nil).
		Once()

	// sleep ignores its context and outlives the deadline
	command := suite.parse("/tmp/storage.yaml", "app.math", "sleep", 1, false, "null", 0)

	outcome := NewInvoker(suite.logger, suite.registry, storageInstance).Invoke(suite.ctx, command, nil)
	suite.Require().Equal(ExitCodeTimedOut, outcome.ExitCode)

	// released once before returning, without write back
	suite.Require().Equal([]bool{true}, releases)

	storageInstance.AssertExpectations(suite.T())
}

func (suite *InvokerTestSuite) register(path string,
	method string,
	kind task.Kind,
	newTarget func() interface{},
	entrypoint task.Entrypoint) {
	err := suite.registry.Register(&task.Definition{
		Path:       path,
		Method:     method,
		Kind:       kind,
		Entrypoint: entrypoint,
		NewTarget:  newTarget,
	}, nil)
	suite.Require().NoError(err)
}

func (suite *InvokerTestSuite) parse(storageConf string,
	path string,
	method string,
	timeoutSeconds int,
	hasTarget bool,
	returnType string,
	returnLength int,
	parameters ...string) *Command {

	var parameterFields []string
	for _, parameter := range parameters {
		parameterFields = append(parameterFields, strings.Fields(parameter)...)
	}

	args := []string{
		"false", "1", "debug", storageConf, "METHOD",
		path, method, strconv.Itoa(timeoutSeconds), "0", "1",
		strconv.FormatBool(hasTarget), returnType, strconv.Itoa(returnLength), strconv.Itoa(len(parameters)),
	}

	command, err := suite.parser.ParseArguments(append(args, parameterFields...))
	suite.Require().NoError(err)

	return command
}

func TestInvokerTestSuite(t *testing.T) {
	suite.Run(t, new(InvokerTestSuite))
}
