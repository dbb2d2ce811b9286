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
	"sync/atomic"

	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/status"
)

// Handles given to kernels: valid only while the kernel runs.
var (
	handles    sync.Map // kernel.Context -> *ExecutionContext
	nextHandle atomic.Uintptr
)

// borrowHandle registers ctx and returns a new handle to it. It must be matched by releaseHandle.
func borrowHandle(ctx *ExecutionContext) kernel.Context {
	handle := kernel.Context(nextHandle.Add(1))
	handles.Store(handle, ctx)
	return handle
}

func releaseHandle(handle kernel.Context) {
	handles.Delete(handle)
}

// ContextFromHandle returns the ExecutionContext of a handle given to a running kernel.
// It returns an InvalidArgument error for unknown or expired handles.
func ContextFromHandle(handle kernel.Context) (*ExecutionContext, error) {
	if handle == kernel.NilContext {
		return nil, status.Errorf(status.InvalidArgument, "nil kernel context")
	}
	value, found := handles.Load(handle)
	if !found {
		return nil, status.Errorf(status.InvalidArgument, "invalid or expired kernel context %d", uintptr(handle))
	}
	return value.(*ExecutionContext), nil
}
