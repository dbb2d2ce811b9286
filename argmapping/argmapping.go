/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package argmapping maps the arguments of a framework operator (its inputs, attributes and
// outputs, by name) to the signature of the kernel that implements it.
//
// Mappings are registered per operator type in an FnMap, usually from init() functions, and are
// consulted at dispatch time.
package argmapping

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/gokernels/status"
	"k8s.io/klog/v2"
)

// GradSuffix is appended to a variable name to form the name of its gradient.
const GradSuffix = "@GRAD"

// GradVarName returns the name of the gradient variable of name.
func GradVarName(name string) string {
	return name + GradSuffix
}

// Context is the read-only view of an operator invocation a mapping function inspects.
type Context interface {
	HasInput(name string) bool
	HasOutput(name string) bool
	HasAttr(name string) bool
	InputSize(name string) int
	OutputSize(name string) int
	IsDenseTensorInput(name string) bool
	IsSelectedRowsInput(name string) bool
}

// KernelSignature is the kernel name and the ordered argument names an operator maps to.
type KernelSignature struct {
	Name    string
	Inputs  []string
	Attrs   []string
	Outputs []string
}

// String implements fmt.Stringer.
func (s KernelSignature) String() string {
	return fmt.Sprintf("KernelSignature(%q, inputs=[%s], attrs=[%s], outputs=[%s])",
		s.Name, strings.Join(s.Inputs, ", "), strings.Join(s.Attrs, ", "), strings.Join(s.Outputs, ", "))
}

// Mapper maps the arguments of an operator invocation to a kernel signature.
type Mapper interface {
	MapArguments(ctx Context) KernelSignature
}

// MappingFn adapts a function to a Mapper.
type MappingFn func(ctx Context) KernelSignature

// MapArguments implements Mapper.
func (fn MappingFn) MapArguments(ctx Context) KernelSignature { return fn(ctx) }

type entry struct {
	apiName string
	mapper  Mapper
}

// FnMap is a registry of argument mapping functions, keyed by operator type.
// It is safe for concurrent use.
type FnMap struct {
	mu  sync.RWMutex
	fns map[string]entry
}

// DefaultFnMap is the process-wide registry used by the built-in mappings.
var DefaultFnMap = NewFnMap()

// NewFnMap creates an empty FnMap.
func NewFnMap() *FnMap {
	return &FnMap{fns: make(map[string]entry)}
}

// Emplace registers the mapping for opType. apiName is the name of the user-facing API
// the operator implements, and it is informational only.
//
// It returns an AlreadyExists error if opType already has a mapping.
func (m *FnMap) Emplace(opType, apiName string, mapper Mapper) error {
	if mapper == nil {
		return status.Errorf(status.InvalidArgument, "nil argument mapping for operator %q", opType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.fns[opType]; found {
		return status.Errorf(status.AlreadyExists, "operator %q has been already registered argument mapping function", opType)
	}
	m.fns[opType] = entry{apiName: apiName, mapper: mapper}
	klog.V(1).Infof("argument mapping registered for %q (api %q)", opType, apiName)
	return nil
}

// Has returns whether opType has a mapping.
func (m *FnMap) Has(opType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, found := m.fns[opType]
	return found
}

// Get returns the mapping of opType, or a NotFound error.
func (m *FnMap) Get(opType string) (Mapper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, found := m.fns[opType]
	if !found {
		return nil, status.Errorf(status.NotFound, "operator %q has no argument mapping function", opType)
	}
	return e.mapper, nil
}

// APIName returns the API name registered with opType, or "" if it has no mapping.
func (m *FnMap) APIName(opType string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fns[opType].apiName
}

// OpTypes returns the sorted operator types with a mapping.
func (m *FnMap) OpTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opTypes := make([]string, 0, len(m.fns))
	for opType := range m.fns {
		opTypes = append(opTypes, opType)
	}
	slices.Sort(opTypes)
	return opTypes
}
