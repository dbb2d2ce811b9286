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
	"sync"

	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/tensor"
)

// Stream is an opaque handle to a device stream. NoStream (the zero value) means the device
// has no stream.
type Stream uintptr

// NoStream is the Stream of devices without streams (the CPU).
const NoStream Stream = 0

// DeviceContext is the per-device state handed to kernels.
type DeviceContext struct {
	place  tensor.Place
	stream Stream
}

// NewDeviceContext creates a DeviceContext for place. Pass NoStream for devices without a stream.
func NewDeviceContext(place tensor.Place, stream Stream) *DeviceContext {
	return &DeviceContext{place: place, stream: stream}
}

// Place returns the place of the device.
func (dc *DeviceContext) Place() tensor.Place { return dc.place }

// Stream returns the stream of the device, and whether it has one.
func (dc *DeviceContext) Stream() (Stream, bool) {
	return dc.stream, dc.stream != NoStream
}

// DeviceContextPool holds one DeviceContext per place.
type DeviceContextPool struct {
	mu       sync.Mutex
	contexts map[tensor.Place]*DeviceContext
}

// NewDeviceContextPool creates a pool with a context for the CPU.
func NewDeviceContextPool() *DeviceContextPool {
	pool := &DeviceContextPool{contexts: make(map[tensor.Place]*DeviceContext)}
	pool.Set(NewDeviceContext(tensor.CPUPlace, NoStream))
	return pool
}

// Set adds or replaces the context of dc.Place().
func (pool *DeviceContextPool) Set(dc *DeviceContext) {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	pool.contexts[dc.place] = dc
}

// Get returns the context of place. Places never set get a context without stream.
func (pool *DeviceContextPool) Get(place tensor.Place) *DeviceContext {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	dc, found := pool.contexts[place]
	if !found {
		dc = NewDeviceContext(place, NoStream)
		pool.contexts[place] = dc
	}
	return dc
}

// CPU returns the context of the CPU.
func (pool *DeviceContextPool) CPU() *DeviceContext {
	return pool.Get(tensor.Place{Backend: kernel.CPU})
}
