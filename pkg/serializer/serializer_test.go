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

package serializer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type counter struct {
	Name  string
	Value int
}

type SerializerTestSuite struct {
	suite.Suite
	tempDir string
}

func (suite *SerializerTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *SerializerTestSuite) TestFileRoundTrip() {
	path := filepath.Join(suite.tempDir, "counter")

	suite.Require().NoError(SerializeToFile(&counter{Name: "c", Value: 3}, path))

	// overwrite with a mutated state
	suite.Require().NoError(SerializeToFile(&counter{Name: "c", Value: 4}, path))

	decoded, err := DeserializeFromFile(path, &counter{})
	suite.Require().NoError(err)
	suite.Require().Equal(&counter{Name: "c", Value: 4}, decoded)

	// no temporary files left behind
	entries, err := os.ReadDir(suite.tempDir)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
}

func (suite *SerializerTestSuite) TestGenericValue() {
	data, err := Serialize([]string{"a", "b"})
	suite.Require().NoError(err)
	suite.Require().Equal(Marker, data[0])

	value, err := DeserializeValue(data)
	suite.Require().NoError(err)
	suite.Require().Equal([]interface{}{"a", "b"}, value)
}

func (suite *SerializerTestSuite) TestDecodeErrors() {
	valid, err := Serialize("some string")
	suite.Require().NoError(err)

	for _, testCase := range []struct {
		name           string
		data           []byte
		expectedReason DecodeErrorReason
	}{
		{
			name:           "Empty",
			data:           []byte{},
			expectedReason: DecodeErrorReasonBadMarker,
		},
		{
			name:           "PlainText",
			data:           []byte("hello"),
			expectedReason: DecodeErrorReasonBadMarker,
		},
		{
			name:           "Truncated",
			data:           valid[:len(valid)-3],
			expectedReason: DecodeErrorReasonTruncated,
		},
		{
			name:           "TrailingData",
			data:           append(append([]byte{}, valid...), 0x01),
			expectedReason: DecodeErrorReasonTrailingData,
		},
	} {
		suite.Run(testCase.name, func() {
			_, err := DeserializeValue(testCase.data)
			suite.Require().Error(err)
			suite.Require().True(IsRecoverable(err))

			decodeError, ok := err.(*DecodeError)
			suite.Require().True(ok)
			suite.Require().Equal(testCase.expectedReason, decodeError.Reason)
		})
	}
}

func (suite *SerializerTestSuite) TestMissingFileIsNotRecoverable() {
	_, err := DeserializeFromFile(filepath.Join(suite.tempDir, "missing"), nil)
	suite.Require().Error(err)
	suite.Require().False(IsRecoverable(err))
}

func TestSerializerTestSuite(t *testing.T) {
	suite.Run(t, new(SerializerTestSuite))
}
