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
	"encoding/base64"
	"math"
	"strconv"
	"strings"

	"github.com/nuclio/taskworker/pkg/serializer"
	"github.com/nuclio/taskworker/pkg/task"

	"github.com/nuclio/logger"
)

// every parameter starts with type, stream mode, prefix, name and value
const parameterHeaderLength = 5

// prepended by the master to every string before encoding so empty strings are never empty encodings
const stringSentinel = '#'

// Codec decodes the parameter blocks of a task command
type Codec struct {
	logger logger.Logger
}

func NewCodec(parentLogger logger.Logger) *Codec {
	return &Codec{
		logger: parentLogger.GetChild("codec"),
	}
}

// Decode decodes count parameters from fields, left to right
func (c *Codec) Decode(fields []string, count int) ([]*task.Parameter, error) {
	parameters, _, err := c.decode(fields, count)
	return parameters, err
}

// EncodeString encodes a string parameter value the way the master does
func EncodeString(value string) string {
	return base64.StdEncoding.EncodeToString([]byte(string(stringSentinel) + value))
}

func (c *Codec) decode(fields []string, count int) ([]*task.Parameter, int, error) {
	if count < 0 {
		return nil, 0, newParameterDecodeError(0, "count", strconv.Itoa(count), "negative parameter count")
	}

	parameters := make([]*task.Parameter, 0, count)
	position := 0

	for parameterIdx := 0; parameterIdx < count; parameterIdx++ {
		if position+parameterHeaderLength > len(fields) {
			return nil, 0, newParameterDecodeError(parameterIdx,
				"header",
				strings.Join(fields[minInt(position, len(fields)):], " "),
				"not enough fields")
		}

		header := fields[position : position+parameterHeaderLength]

		parameterType, err := strconv.Atoi(header[0])
		if err != nil {
			return nil, 0, newParameterDecodeError(parameterIdx, "type", header[0], err.Error())
		}

		streamMode, err := strconv.Atoi(header[1])
		if err != nil {
			return nil, 0, newParameterDecodeError(parameterIdx, "stream mode", header[1], err.Error())
		}

		parameter, extraFields, err := c.decodeParameter(parameterIdx,
			task.ParameterType(parameterType),
			task.StreamMode(streamMode),
			header[2],
			header[3],
			header[4],
			fields[position+parameterHeaderLength:])
		if err != nil {
			return nil, 0, err
		}

		parameters = append(parameters, parameter)
		position += parameterHeaderLength + extraFields
	}

	return parameters, minInt(position, len(fields)), nil
}

func (c *Codec) decodeParameter(parameterIdx int,
	parameterType task.ParameterType,
	streamMode task.StreamMode,
	prefix string,
	name string,
	value string,
	remainingFields []string) (*task.Parameter, int, error) {

	switch parameterType {
	case task.ParameterTypeFile, task.ParameterTypeCollection, task.ParameterTypeExternalStream:
		return task.NewFileParameter(parameterType, streamMode, prefix, name, value), 0, nil

	case task.ParameterTypeExternalPSCO:

		// followed by a direction marker we do not interpret
		return task.NewPersistentParameter(streamMode, prefix, name, value), 1, nil

	case task.ParameterTypeString:
		numSubFields, err := strconv.Atoi(value)
		if err != nil {
			return nil, 0, newParameterDecodeError(parameterIdx, "string length", value, err.Error())
		}

		if numSubFields < 0 || numSubFields > len(remainingFields) {
			return nil, 0, newParameterDecodeError(parameterIdx, "string length", value, "not enough fields")
		}

		content, err := c.decodeString(parameterIdx, remainingFields[:numSubFields])
		if err != nil {
			return nil, 0, err
		}

		return task.NewContentParameter(parameterType, streamMode, prefix, name, content), numSubFields, nil

	case task.ParameterTypeInt:
		content, err := strconv.Atoi(value)
		if err != nil {
			return nil, 0, newParameterDecodeError(parameterIdx, "int", value, err.Error())
		}

		return task.NewContentParameter(parameterType, streamMode, prefix, name, content), 0, nil

	case task.ParameterTypeLong:
		content, err := decodeLong(value)
		if err != nil {
			return nil, 0, newParameterDecodeError(parameterIdx, "long", value, err.Error())
		}

		return task.NewContentParameter(parameterType, streamMode, prefix, name, content), 0, nil

	case task.ParameterTypeDouble:
		content, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, 0, newParameterDecodeError(parameterIdx, "double", value, err.Error())
		}

		return task.NewContentParameter(parameterType, streamMode, prefix, name, content), 0, nil

	case task.ParameterTypeBoolean:
		return task.NewContentParameter(parameterType, streamMode, prefix, name, value == "true"), 0, nil
	}

	c.logger.DebugWith("Parameter type carries no inline value",
		"index", parameterIdx,
		"type", parameterType.String(),
		"name", name)

	return task.NewContentParameter(parameterType, streamMode, prefix, name, nil), 0, nil
}

// decodeString rebuilds a string parameter. If the decoded bytes hold a serialized object,
// the object is returned instead
func (c *Codec) decodeString(parameterIdx int, subFields []string) (interface{}, error) {
	encoded := strings.Join(subFields, " ")

	decoded, err := base64.StdEncoding.DecodeString(stripNonBase64(encoded))
	if err != nil {
		return nil, newParameterDecodeError(parameterIdx, "string", encoded, err.Error())
	}

	// drop the sentinel
	if len(decoded) > 0 {
		decoded = decoded[1:]
	}

	if len(decoded) == 0 {
		return "", nil
	}

	object, err := serializer.DeserializeValue(decoded)
	if err != nil {
		if !serializer.IsRecoverable(err) {
			return nil, newParameterDecodeError(parameterIdx, "string", encoded, err.Error())
		}

		return string(decoded), nil
	}

	if objectBytes, isBytes := object.([]byte); isBytes {
		return string(objectBytes), nil
	}

	return object, nil
}

// decodeLong narrows values inside the 32 bit range to int and keeps wider values as int64
func decodeLong(value string) (interface{}, error) {
	content, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, err
	}

	if content > math.MaxInt32 || content < math.MinInt32 {
		return content, nil
	}

	return int(content), nil
}

// rejoined sub-fields contain spaces. Anything outside the base64 alphabet is ignored
func stripNonBase64(encoded string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/', r == '=':
			return r
		}

		return -1
	}, encoded)
}

func minInt(a int, b int) int {
	if a < b {
		return a
	}

	return b
}
