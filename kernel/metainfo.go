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

package kernel

import (
	"slices"
	"sync"
)

// MetaInfoConfig holds everything needed to create a MetaInfo.
type MetaInfoConfig struct {
	OpName string
	Key    Key

	// Inputs, Outputs and Attrs are the optional names of the kernel arguments.
	Inputs, Outputs, Attrs []string

	// Fn is the kernel function. It can be set later with Builder.SetKernelFn.
	Fn Func
}

// MetaInfo describes one registered kernel: the op it implements, its Key, its function and the
// names of its arguments.
//
// It is a read-only value: the accessors return copies.
type MetaInfo struct {
	opName                 string
	key                    Key
	inputs, outputs, attrs []string
	fn                     Func
}

// NewMetaInfo creates a MetaInfo from its configuration.
func NewMetaInfo(config MetaInfoConfig) MetaInfo {
	return MetaInfo{
		opName:  config.OpName,
		key:     config.Key,
		inputs:  slices.Clone(config.Inputs),
		outputs: slices.Clone(config.Outputs),
		attrs:   slices.Clone(config.Attrs),
		fn:      config.Fn,
	}
}

// OpName returns the name of the op the kernel implements.
func (info MetaInfo) OpName() string { return info.opName }

// Key returns the kernel key.
func (info MetaInfo) Key() Key { return info.key }

// Inputs returns the names of the inputs, if they were given.
func (info MetaInfo) Inputs() []string { return slices.Clone(info.inputs) }

// Outputs returns the names of the outputs, if they were given.
func (info MetaInfo) Outputs() []string { return slices.Clone(info.outputs) }

// Attrs returns the names of the attributes, if they were given.
func (info MetaInfo) Attrs() []string { return slices.Clone(info.attrs) }

// KernelFn returns the kernel function, or nil if it was never set.
func (info MetaInfo) KernelFn() Func { return info.fn }

// EntryID identifies one entry of a MetaInfoMap: the op name and the position in its list.
//
// Unlike a pointer into the list, it stays valid when more kernels are registered for the same op.
type EntryID struct {
	OpName string
	Index  int
}

// MetaInfoMap maps op names to the list of kernels registered for them, in registration order.
//
// Plugins fill one during initialization, and export it with a function named GetKernelMetaInfoMap
// (see framework.GetKernelMetaInfoMapSymbol). Kernels linked directly with the host binary can use
// DefaultMetaInfoMap.
//
// It is safe for concurrent use.
type MetaInfoMap struct {
	mu      sync.RWMutex
	entries map[string][]MetaInfo
}

// DefaultMetaInfoMap is the registry used by Register and RegisterFromStrings.
var DefaultMetaInfoMap = NewMetaInfoMap()

// NewMetaInfoMap returns a new empty registry.
func NewMetaInfoMap() *MetaInfoMap {
	return &MetaInfoMap{entries: make(map[string][]MetaInfo)}
}

// Register appends a new kernel to the list of its op and returns its EntryID.
//
// Registering the same Key twice for an op is not an error: both entries are kept, and the one
// installed last in the host overwrites the other.
func (m *MetaInfoMap) Register(config MetaInfoConfig) EntryID {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := NewMetaInfo(config)
	m.entries[info.opName] = append(m.entries[info.opName], info)
	return EntryID{OpName: info.opName, Index: len(m.entries[info.opName]) - 1}
}

// Get returns the kernels registered for opName, in registration order.
func (m *MetaInfoMap) Get(opName string) []MetaInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries[opName])
}

// Entry returns the entry with the given id.
func (m *MetaInfoMap) Entry(id EntryID) (info MetaInfo, found bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.entries[id.OpName]
	if id.Index < 0 || id.Index >= len(list) {
		return
	}
	return list[id.Index], true
}

// update calls fn with a pointer to the entry, under the write lock.
func (m *MetaInfoMap) update(id EntryID, fn func(info *MetaInfo)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[id.OpName]
	if id.Index < 0 || id.Index >= len(list) {
		return false
	}
	fn(&list[id.Index])
	return true
}

// OpNames returns the names of the ops with registered kernels, sorted.
func (m *MetaInfoMap) OpNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of ops with registered kernels.
func (m *MetaInfoMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// NumKernels returns the total number of registered kernels, over all ops.
func (m *MetaInfoMap) NumKernels() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int
	for _, list := range m.entries {
		count += len(list)
	}
	return count
}
