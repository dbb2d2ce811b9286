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

import "github.com/gomlx/gokernels/dtypes"

// The string parsers below are best-effort lookups for the free-form names kernel authors use
// when registering kernels. They never fail: a name not in the table maps to the corresponding
// undefined sentinel, and a kernel registered with it will not be selected by any real dispatch
// key. Prefer the enum-typed constructors (NewBuilder) when possible.

var backendsByName = map[string]Backend{
	"CPU":    CPU,
	"GPU":    GPU,
	"CUDA":   GPU,
	"XPU":    XPU,
	"NPU":    NPU,
	"MKLDNN": MKLDNN,
	"CUDNN":  CUDNN,
}

var layoutsByName = map[string]DataLayout{
	"ANY":    AnyLayout,
	"NHWC":   NHWC,
	"NCHW":   NCHW,
	"MKLDNN": MKLDNNLayout,
}

// ParseBackend returns the Backend for the exact (case-sensitive) name, e.g. "CPU" or "NPU",
// or BackendUndefined if the name is not known.
func ParseBackend(name string) Backend {
	return backendsByName[name]
}

// ParseDataLayout returns the DataLayout for the exact (case-sensitive) name, e.g. "ANY" or "NCHW",
// or LayoutUndefined if the name is not known.
func ParseDataLayout(name string) DataLayout {
	return layoutsByName[name]
}

// ParseDataType returns the dtype for names like "float", "int64_t" or "float16" (see dtypes.MapOfNames),
// or dtypes.Undefined if the name is not known.
func ParseDataType(name string) dtypes.DType {
	return dtypes.MapOfNames[name]
}

// ParseKey parses the three names into a Key. Unknown names leave the corresponding field undefined.
func ParseKey(backend, layout, dtype string) Key {
	return NewKey(ParseBackend(backend), ParseDataLayout(layout), ParseDataType(dtype))
}
