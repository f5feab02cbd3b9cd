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

package registry

import (
	"testing"

	"github.com/nuclio/errors"
	"github.com/stretchr/testify/suite"
)

type RegistryTestSuite struct {
	suite.Suite
	registry *Registry[int]
}

func (suite *RegistryTestSuite) SetupTest() {
	suite.registry = NewRegistry[int]("test")
}

func (suite *RegistryTestSuite) TestAddAndGet() {
	suite.Require().NoError(suite.registry.Add("b", 2))
	suite.Require().NoError(suite.registry.Add("a", 1))

	value, err := suite.registry.Get("b")
	suite.Require().NoError(err)
	suite.Require().Equal(2, value)

	suite.Require().Equal([]string{"a", "b"}, suite.registry.GetKinds())
	suite.Require().Equal([]int{1, 2}, suite.registry.GetAll())
}

func (suite *RegistryTestSuite) TestDuplicate() {
	suite.Require().NoError(suite.registry.Add("a", 1))

	err := suite.registry.Add("a", 3)
	suite.Require().Equal(ErrAlreadyRegistered, errors.RootCause(err))
	suite.Require().Panics(func() { suite.registry.Register("a", 4) })

	value, err := suite.registry.Get("a")
	suite.Require().NoError(err)
	suite.Require().Equal(1, value)
}

func (suite *RegistryTestSuite) TestNotFound() {
	_, err := suite.registry.Get("missing")
	suite.Require().Equal(ErrNotFound, errors.RootCause(err))
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}
