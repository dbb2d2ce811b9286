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

// Package dtypes defines the element types of tensors handled by kernels, and the mapping
// to Go types.
package dtypes

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/gomlx/gokernels/dtypes/bfloat16"
	"github.com/x448/float16"
)

// DType is the element type of a tensor.
//
// The zero value is Undefined, which is also what string lookups return for names
// they don't know.
type DType int32

const (
	// Undefined represents an invalid (or not set) dtype.
	Undefined DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	BFloat16
	Float32
	Float64
	Complex64
	Complex128

	numDTypes
)

var dtypeNames = [numDTypes]string{
	Undefined:  "Undefined",
	Bool:       "Bool",
	Int8:       "Int8",
	Int16:      "Int16",
	Int32:      "Int32",
	Int64:      "Int64",
	Uint8:      "Uint8",
	Uint16:     "Uint16",
	Uint32:     "Uint32",
	Uint64:     "Uint64",
	Float16:    "Float16",
	BFloat16:   "BFloat16",
	Float32:    "Float32",
	Float64:    "Float64",
	Complex64:  "Complex64",
	Complex128: "Complex128",
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if dtype < 0 || dtype >= numDTypes {
		return "DType(" + strconv.Itoa(int(dtype)) + ")"
	}
	return dtypeNames[dtype]
}

// IsValid returns whether dtype is one of the defined dtypes, other than Undefined.
func (dtype DType) IsValid() bool {
	return dtype > Undefined && dtype < numDTypes
}

// IsFloat returns whether dtype is a floating point type (not including complex numbers).
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == BFloat16 || dtype == Float32 || dtype == Float64
}

// IsInt returns whether dtype is a signed or unsigned integer.
func (dtype DType) IsInt() bool {
	return dtype >= Int8 && dtype <= Uint64
}

// Size returns the number of bytes for one element of the given dtype. It returns 0 for Undefined.
func (dtype DType) Size() int {
	switch dtype {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16, Float16, BFloat16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64, Complex64:
		return 8
	case Complex128:
		return 16
	}
	return 0
}

// SizeForDimensions returns the number of bytes needed to store an array of the given dimensions.
// A scalar (no dimensions) holds one element.
func (dtype DType) SizeForDimensions(dimensions ...int64) int {
	numElements := int64(1)
	for _, dim := range dimensions {
		numElements *= dim
	}
	return int(numElements) * dtype.Size()
}

// GoType returns the Go reflect.Type corresponding to the dtype, or nil for Undefined.
func (dtype DType) GoType() reflect.Type {
	switch dtype {
	case Bool:
		return reflect.TypeOf(false)
	case Int8:
		return reflect.TypeOf(int8(0))
	case Int16:
		return reflect.TypeOf(int16(0))
	case Int32:
		return reflect.TypeOf(int32(0))
	case Int64:
		return reflect.TypeOf(int64(0))
	case Uint8:
		return reflect.TypeOf(uint8(0))
	case Uint16:
		return reflect.TypeOf(uint16(0))
	case Uint32:
		return reflect.TypeOf(uint32(0))
	case Uint64:
		return reflect.TypeOf(uint64(0))
	case Float16:
		return reflect.TypeOf(float16.Float16(0))
	case BFloat16:
		return reflect.TypeOf(bfloat16.BFloat16(0))
	case Float32:
		return reflect.TypeOf(float32(0))
	case Float64:
		return reflect.TypeOf(float64(0))
	case Complex64:
		return reflect.TypeOf(complex64(0))
	case Complex128:
		return reflect.TypeOf(complex128(0))
	}
	return nil
}

// Supported lists the Go types that map to a DType.
type Supported interface {
	bool | float16.Float16 | bfloat16.BFloat16 | float32 | float64 | int | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 | complex64 | complex128
}

// FromGenericsType returns the DType for the generic type T.
//
// Go's int maps to Int64.
func FromGenericsType[T Supported]() DType {
	var t T
	return FromAny(t)
}

// FromAny returns the DType of the given value, or Undefined if its type is not supported.
func FromAny(value any) DType {
	switch value.(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64, int:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float16.Float16:
		return Float16
	case bfloat16.BFloat16:
		return BFloat16
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	}
	return Undefined
}

// MapOfNames maps names to DTypes: the DType's own name, its lower-case version, the short
// forms ("f32", "s64", "bf16", ...) and the C/C++ spellings kernel authors use when registering
// kernels ("float", "double", "int64_t", ...).
var MapOfNames = map[string]DType{}

// shortNames and cNames are merged into MapOfNames during initialization.
var (
	shortNames = map[string]DType{
		"pred": Bool,
		"s8":   Int8, "s16": Int16, "s32": Int32, "s64": Int64,
		"u8": Uint8, "u16": Uint16, "u32": Uint32, "u64": Uint64,
		"f16": Float16, "bf16": BFloat16, "f32": Float32, "f64": Float64,
		"c64": Complex64, "c128": Complex128,
	}
	cNames = map[string]DType{
		"float":   Float32,
		"double":  Float64,
		"int8_t":  Int8,
		"int16_t": Int16,
		"int32_t": Int32,
		"int64_t": Int64,
		"uint8_t": Uint8,
		"int":     Int32,
	}
)

func init() {
	for dtype := Bool; dtype < numDTypes; dtype++ {
		name := dtype.String()
		MapOfNames[name] = dtype
		MapOfNames[strings.ToLower(name)] = dtype
	}
	for name, dtype := range shortNames {
		MapOfNames[name] = dtype
		MapOfNames[strings.ToUpper(name)] = dtype
	}
	for name, dtype := range cNames {
		MapOfNames[name] = dtype
	}
}
