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

// Package status defines the error codes used across the kernel registration layer, and a structured
// error type carrying one of them.
//
// Errors created here carry a stack trace (see github.com/pkg/errors), so they can be printed with "%+v".
package status

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies an error.
type Code int

const (
	OK Code = iota

	// NotFound is used for missing inputs/outputs, unknown operators and missing exported symbols.
	NotFound

	// InvalidArgument is used for uninitialized tensors and unsupported values.
	InvalidArgument

	// PreconditionNotMet is used when registration happens out of order.
	PreconditionNotMet

	// Unimplemented is used for configurations not supported (yet).
	Unimplemented

	// External wraps failures raised by plugin code that are not themselves structured errors.
	External

	// Fatal marks unrecognized plugin failures and unrecoverable loading problems.
	Fatal

	// AlreadyExists is returned when registering something twice where that is not allowed.
	AlreadyExists
)

var codeNames = map[Code]string{
	OK:                 "OK",
	NotFound:           "NotFound",
	InvalidArgument:    "InvalidArgument",
	PreconditionNotMet: "PreconditionNotMet",
	Unimplemented:      "Unimplemented",
	External:           "External",
	Fatal:              "Fatal",
	AlreadyExists:      "AlreadyExists",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if name, found := codeNames[c]; found {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is a structured error: a Code and a message.
type Error struct {
	code  Code
	cause error
}

// Code returns the error's code.
func (e *Error) Code() Code { return e.code }

// Message returns the message without the code prefix.
func (e *Error) Message() string { return e.cause.Error() }

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.cause.Error())
}

// Unwrap returns the underlying error, which holds the stack trace.
func (e *Error) Unwrap() error { return e.cause }

// Format implements fmt.Formatter, so "%+v" prints the stack trace of where the error was created.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "%s: %+v", e.code, e.cause)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// Errorf creates a new *Error with the given code and formatted message.
func Errorf(code Code, format string, args ...any) error {
	return &Error{code: code, cause: errors.Errorf(format, args...)}
}

// Wrapf wraps err into an *Error with the given code, prefixing the message.
// It returns nil if err is nil.
func Wrapf(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, cause: errors.Wrapf(err, format, args...)}
}

// FromError returns the *Error in err's chain, if there is one.
func FromError(err error) (*Error, bool) {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr, true
	}
	return nil, false
}

// IsStatus returns whether err is (or wraps) an *Error.
func IsStatus(err error) bool {
	_, ok := FromError(err)
	return ok
}

// CodeOf returns the Code of err: OK for nil errors, and Fatal for errors that carry no code.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	if sErr, ok := FromError(err); ok {
		return sErr.code
	}
	return Fatal
}

// Is returns whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
