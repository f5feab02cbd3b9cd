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

package task

import (
	"fmt"
	"strconv"
)

// ParameterType is the wire type code of a task parameter. Codes are the master runtime's
// data type ordinals
type ParameterType int

const (
	ParameterTypeBoolean        ParameterType = 0
	ParameterTypeInt            ParameterType = 4
	ParameterTypeLong           ParameterType = 5
	ParameterTypeDouble         ParameterType = 7
	ParameterTypeString         ParameterType = 8
	ParameterTypeFile           ParameterType = 9
	ParameterTypeObject         ParameterType = 10
	ParameterTypePSCO           ParameterType = 11
	ParameterTypeExternalPSCO   ParameterType = 12
	ParameterTypeCollection     ParameterType = 26
	ParameterTypeExternalStream ParameterType = 28
	ParameterTypeNull           ParameterType = 30
)

var parameterTypeNames = map[ParameterType]string{
	ParameterTypeBoolean:        "BOOLEAN",
	ParameterTypeInt:            "INT",
	ParameterTypeLong:           "LONG",
	ParameterTypeDouble:         "DOUBLE",
	ParameterTypeString:         "STRING",
	ParameterTypeFile:           "FILE",
	ParameterTypeObject:         "OBJECT",
	ParameterTypePSCO:           "PSCO",
	ParameterTypeExternalPSCO:   "EXTERNAL_PSCO",
	ParameterTypeCollection:     "COLLECTION",
	ParameterTypeExternalStream: "EXTERNAL_STREAM",
	ParameterTypeNull:           "NULL",
}

func (pt ParameterType) String() string {
	if name, found := parameterTypeNames[pt]; found {
		return name
	}

	return fmt.Sprintf("Unknown parameter type - %d", int(pt))
}

// Code returns the wire representation of the type
func (pt ParameterType) Code() string {
	return strconv.Itoa(int(pt))
}

// StreamMode is the standard stream a parameter is bound to
type StreamMode int

const (
	StreamModeStdin StreamMode = iota
	StreamModeStdout
	StreamModeStderr
	StreamModeUnspecified
)

func (sm StreamMode) String() string {
	switch sm {
	case StreamModeStdin:
		return "stdin"
	case StreamModeStdout:
		return "stdout"
	case StreamModeStderr:
		return "stderr"
	case StreamModeUnspecified:
		return "unspecified"
	}

	return fmt.Sprintf("Unknown stream mode - %d", int(sm))
}

// Direction is the access mode the master declared for a parameter
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
	DirectionInOut
	DirectionConcurrent
	DirectionCommutative
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionInOut:
		return "INOUT"
	case DirectionConcurrent:
		return "CONCURRENT"
	case DirectionCommutative:
		return "COMMUTATIVE"
	}

	return fmt.Sprintf("Unknown direction - %d", int(d))
}

// TargetUpdatePolicy tells the invoker whether the callee object must be written back after the call
type TargetUpdatePolicy int

const (
	TargetUpdatePolicyNone TargetUpdatePolicy = iota
	TargetUpdatePolicyInOut
	TargetUpdatePolicyCommutative
)

// TargetUpdatePolicyFromDirection maps the callee's declared direction to its update policy
func TargetUpdatePolicyFromDirection(direction Direction) TargetUpdatePolicy {
	switch direction {
	case DirectionInOut:
		return TargetUpdatePolicyInOut
	case DirectionCommutative:
		return TargetUpdatePolicyCommutative
	default:
		return TargetUpdatePolicyNone
	}
}

// RequiresWriteBack returns true if the callee was mutated and must be persisted
func (tup TargetUpdatePolicy) RequiresWriteBack() bool {
	return tup == TargetUpdatePolicyInOut || tup == TargetUpdatePolicyCommutative
}

func (tup TargetUpdatePolicy) String() string {
	switch tup {
	case TargetUpdatePolicyNone:
		return "none"
	case TargetUpdatePolicyInOut:
		return "inout"
	case TargetUpdatePolicyCommutative:
		return "commutative"
	}

	return fmt.Sprintf("Unknown target update policy - %d", int(tup))
}
