//go:build test_unit && linux

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
	"testing"

	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type AffinityTestSuite struct {
	suite.Suite
	logger logger.Logger
	binder *affinityBinder
}

func (suite *AffinityTestSuite) SetupSuite() {
	var err error

	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)

	suite.binder = newAffinityBinder(suite.logger)
}

func (suite *AffinityTestSuite) TestBindAndRelease() {
	done := make(chan struct{})

	// run on a fresh goroutine so the test goroutine's thread is left alone
	go func() {
		defer close(done)

		previousCPUs := getThreadAffinity()
		suite.Require().NotEmpty(previousCPUs)

		var stderr bytes.Buffer
		release := suite.binder.bind(previousCPUs[:1], &stderr)

		suite.Require().Equal(previousCPUs[:1], getThreadAffinity())
		suite.Require().Empty(stderr.String())

		release()

		suite.Require().Equal(previousCPUs, getThreadAffinity())
	}()

	<-done
}

func (suite *AffinityTestSuite) TestNonexistentCPUsWarn() {
	var stderr bytes.Buffer

	release := suite.binder.bind([]int{-1, 1 << 20}, &stderr)
	release()

	suite.Require().Contains(stderr.String(), "default thread affinity")
}

func (suite *AffinityTestSuite) TestNoBinding() {
	var stderr bytes.Buffer

	release := suite.binder.bind(nil, &stderr)
	release()

	suite.Require().Empty(stderr.String())
}

func TestAffinityTestSuite(t *testing.T) {
	suite.Run(t, new(AffinityTestSuite))
}
