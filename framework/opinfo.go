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

package framework

import (
	"slices"
	"sync"

	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/status"
)

// OpInfo describes an operator known to the host: its argument names and, for custom operators,
// its shape and dtype inference functions.
type OpInfo struct {
	Type                   string
	Inputs, Outputs, Attrs []string

	// InferShape and InferDtype are optional.
	InferShape kernel.InferShapeFunc
	InferDtype kernel.InferDtypeFunc

	// Custom is set for operators registered from a kernel.OpMetaInfoMap.
	Custom bool
}

// OpInfoMap holds the operators known to the host. Kernels can only be registered for
// operators in this map.
type OpInfoMap struct {
	mu  sync.RWMutex
	ops map[string]OpInfo
}

// NewOpInfoMap returns an empty OpInfoMap.
func NewOpInfoMap() *OpInfoMap {
	return &OpInfoMap{ops: make(map[string]OpInfo)}
}

// Insert adds info, or returns an AlreadyExists error if the operator is already known.
func (m *OpInfoMap) Insert(info OpInfo) error {
	if info.Type == "" {
		return status.Errorf(status.InvalidArgument, "operator with empty type cannot be registered")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.ops[info.Type]; found {
		return status.Errorf(status.AlreadyExists, "operator (%s) has been registered", info.Type)
	}
	info.Inputs = slices.Clone(info.Inputs)
	info.Outputs = slices.Clone(info.Outputs)
	info.Attrs = slices.Clone(info.Attrs)
	m.ops[info.Type] = info
	return nil
}

// Has returns whether opType is known.
func (m *OpInfoMap) Has(opType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, found := m.ops[opType]
	return found
}

// Get returns the OpInfo of opType.
func (m *OpInfoMap) Get(opType string) (info OpInfo, found bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, found = m.ops[opType]
	return
}

// OpTypes returns the sorted types of the known operators.
func (m *OpInfoMap) OpTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opTypes := make([]string, 0, len(m.ops))
	for opType := range m.ops {
		opTypes = append(opTypes, opType)
	}
	slices.Sort(opTypes)
	return opTypes
}

// Len returns the number of known operators.
func (m *OpInfoMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ops)
}
