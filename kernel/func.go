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

// Context is an opaque handle to the host's per-call execution state: the op's bound inputs and
// outputs, its attributes and device context.
//
// A kernel only borrows it for the duration of one call, and should only use it with the
// functions in package capi. Once the call returns the handle is no longer valid.
type Context uintptr

// NilContext is never a valid handle.
const NilContext Context = 0

// Func is the capability a plugin provides for each registered kernel.
//
// Compute should report failures by returning an error: structured errors from package status
// are passed to the host unchanged, any other error is reported as an External error.
type Func interface {
	Compute(ctx Context) error
}

// FuncAdapter converts a function to the Func interface.
type FuncAdapter func(ctx Context) error

// Compute implements Func.
func (fn FuncAdapter) Compute(ctx Context) error {
	return fn(ctx)
}
