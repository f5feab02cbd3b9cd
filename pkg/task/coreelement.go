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
	"sync"

	"github.com/nuclio/errors"
)

var ErrCoreElementSealed = errors.New("Core element is sealed")

type ImplementationType string

const (
	ImplementationTypeMethod  ImplementationType = "METHOD"
	ImplementationTypeMPI     ImplementationType = "MPI"
	ImplementationTypeBinary  ImplementationType = "BINARY"
	ImplementationTypeOmpSs   ImplementationType = "OMPSS"
	ImplementationTypeOpenCL  ImplementationType = "OPENCL"
	ImplementationTypeDecaf   ImplementationType = "DECAF"
	ImplementationTypeCOMPSs  ImplementationType = "COMPSs"
	ImplementationTypeUnknown ImplementationType = ""
)

// CoreElement is the registration record the master consumes for a task
type CoreElement struct {
	Signature                 string             `json:"signature"`
	ImplementationSignature   string             `json:"implementationSignature,omitempty"`
	ImplementationType        ImplementationType `json:"implementationType"`
	ImplementationTypeArgs    []string           `json:"implementationTypeArgs,omitempty"`
	ImplementationConstraints map[string]string  `json:"implementationConstraints,omitempty"`
	ImplementationIO          bool               `json:"implementationIO,omitempty"`
}

// CoreElementBuilder accumulates a core element during the definition phase. Once sealed
// it rejects further changes
type CoreElementBuilder struct {
	lock        sync.Mutex
	coreElement CoreElement
	sealed      bool
}

func NewCoreElementBuilder(signature string) *CoreElementBuilder {
	return &CoreElementBuilder{
		coreElement: CoreElement{
			Signature:                 signature,
			ImplementationType:        ImplementationTypeMethod,
			ImplementationConstraints: map[string]string{},
		},
	}
}

func (ceb *CoreElementBuilder) SetImplementationType(implementationType ImplementationType,
	implementationTypeArgs ...string) error {
	return ceb.mutate(func(coreElement *CoreElement) {
		coreElement.ImplementationType = implementationType
		coreElement.ImplementationTypeArgs = append([]string{}, implementationTypeArgs...)
	})
}

func (ceb *CoreElementBuilder) SetImplementationSignature(implementationSignature string) error {
	return ceb.mutate(func(coreElement *CoreElement) {
		coreElement.ImplementationSignature = implementationSignature
	})
}

func (ceb *CoreElementBuilder) AddConstraint(key string, value string) error {
	return ceb.mutate(func(coreElement *CoreElement) {
		coreElement.ImplementationConstraints[key] = value
	})
}

func (ceb *CoreElementBuilder) SetIO(io bool) error {
	return ceb.mutate(func(coreElement *CoreElement) {
		coreElement.ImplementationIO = io
	})
}

// Seal freezes the builder and returns the resulting core element. Sealing twice
// returns the same record
func (ceb *CoreElementBuilder) Seal() *CoreElement {
	ceb.lock.Lock()
	defer ceb.lock.Unlock()

	ceb.sealed = true

	return ceb.copyCoreElement()
}

func (ceb *CoreElementBuilder) IsSealed() bool {
	ceb.lock.Lock()
	defer ceb.lock.Unlock()

	return ceb.sealed
}

func (ceb *CoreElementBuilder) mutate(mutator func(*CoreElement)) error {
	ceb.lock.Lock()
	defer ceb.lock.Unlock()

	if ceb.sealed {
		return errors.Wrapf(ErrCoreElementSealed, "Failed to modify core element %s", ceb.coreElement.Signature)
	}

	mutator(&ceb.coreElement)

	return nil
}

func (ceb *CoreElementBuilder) copyCoreElement() *CoreElement {
	coreElement := ceb.coreElement
	coreElement.ImplementationTypeArgs = append([]string{}, ceb.coreElement.ImplementationTypeArgs...)
	coreElement.ImplementationConstraints = map[string]string{}

	for key, value := range ceb.coreElement.ImplementationConstraints {
		coreElement.ImplementationConstraints[key] = value
	}

	return &coreElement
}
