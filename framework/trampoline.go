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
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/status"
	"k8s.io/klog/v2"
)

// UnknownExceptionMessage is the message of the Fatal error returned when a kernel panics with
// something other than an error.
const UnknownExceptionMessage = "custom kernel raises an unknown exception in runtime"

// RunCustomKernelFunc runs fn on ctx, handing it an opaque handle valid only during the call.
//
// Errors are normalized to *status.Error:
//   - status errors (returned or panicked) are returned unchanged;
//   - other errors (returned or panicked) become External errors carrying the original message;
//   - a panic with any other value becomes a Fatal error.
func RunCustomKernelFunc(ctx *ExecutionContext, fn kernel.Func) error {
	if fn == nil {
		return status.Errorf(status.PreconditionNotMet, "no kernel function set for operator %q", ctx.OpType())
	}
	handle := borrowHandle(ctx)
	defer releaseHandle(handle)

	var err error
	exception := exceptions.Try(func() {
		err = fn.Compute(handle)
	})
	if exception != nil {
		if exceptionErr, ok := exception.(error); ok {
			err = exceptionErr
		} else {
			klog.Errorf("custom kernel for %q panicked with %T: %v", ctx.OpType(), exception, exception)
			return status.Errorf(status.Fatal, UnknownExceptionMessage)
		}
	}
	if err == nil || status.IsStatus(err) {
		return err
	}
	return status.Wrapf(status.External, err, "custom kernel for %q failed", ctx.OpType())
}
