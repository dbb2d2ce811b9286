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

// Package kernel holds the metadata plugins use to register kernels with a host: the Key that
// selects a kernel variant (backend, layout and dtype), the MetaInfo describing one kernel, the
// MetaInfoMap registry that collects them, and the Builder used to fill it.
//
// It also defines custom operators (OpMetaInfo, OpBuilder), for plugins that contribute whole new
// operators and not only new kernels for existing ones.
//
// This package doesn't depend on the host: it is what a plugin links against, together with
// package capi to access its inputs and outputs from inside a kernel.
package kernel
