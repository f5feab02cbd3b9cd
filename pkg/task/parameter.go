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

// Parameter is one decoded task argument. Which payload field is set depends on the type:
// FileName for files, collections, streams and serialized objects, Key for persistent
// objects and Content for everything else
type Parameter struct {
	parameterType ParameterType

	StreamMode StreamMode
	Prefix     string
	Name       string

	FileName string
	Key      string
	Content  interface{}
}

// NewFileParameter creates a parameter that references a file path or handle
func NewFileParameter(parameterType ParameterType,
	streamMode StreamMode,
	prefix string,
	name string,
	fileName string) *Parameter {
	return &Parameter{
		parameterType: parameterType,
		StreamMode:    streamMode,
		Prefix:        prefix,
		Name:          name,
		FileName:      fileName,
	}
}

// NewPersistentParameter creates a parameter that references a storage backed object
func NewPersistentParameter(streamMode StreamMode, prefix string, name string, key string) *Parameter {
	return &Parameter{
		parameterType: ParameterTypeExternalPSCO,
		StreamMode:    streamMode,
		Prefix:        prefix,
		Name:          name,
		Key:           key,
	}
}

// NewContentParameter creates a parameter that carries its value inline
func NewContentParameter(parameterType ParameterType,
	streamMode StreamMode,
	prefix string,
	name string,
	content interface{}) *Parameter {
	return &Parameter{
		parameterType: parameterType,
		StreamMode:    streamMode,
		Prefix:        prefix,
		Name:          name,
		Content:       content,
	}
}

func (p *Parameter) GetType() ParameterType {
	return p.parameterType
}

// IsFileReference returns true if the payload is a path or handle
func (p *Parameter) IsFileReference() bool {
	switch p.parameterType {
	case ParameterTypeFile, ParameterTypeCollection, ParameterTypeExternalStream:
		return true
	}

	return false
}

// GetValue returns the value a handler receives for this parameter
func (p *Parameter) GetValue() interface{} {
	switch {
	case p.IsFileReference():
		return p.FileName
	case p.parameterType == ParameterTypeExternalPSCO && p.Content == nil:
		return p.Key
	}

	return p.Content
}

// GetTypes returns the type codes of the given parameters, in order
func GetTypes(parameters []*Parameter) []ParameterType {
	types := make([]ParameterType, len(parameters))
	for parameterIdx, parameter := range parameters {
		types[parameterIdx] = parameter.parameterType
	}

	return types
}
