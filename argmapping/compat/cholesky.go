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

// Package compat registers the argument mappings of the built-in operators in
// argmapping.DefaultFnMap. Import it for its side effects.
package compat

import (
	"github.com/gomlx/gokernels/argmapping"
	"k8s.io/klog/v2"
)

// CholeskyArgumentMapping maps the "cholesky" operator.
func CholeskyArgumentMapping(argmapping.Context) argmapping.KernelSignature {
	return argmapping.KernelSignature{
		Name:    "cholesky",
		Inputs:  []string{"X"},
		Attrs:   []string{"upper"},
		Outputs: []string{"Out"},
	}
}

// CholeskyGradArgumentMapping maps the "cholesky_grad" operator.
func CholeskyGradArgumentMapping(argmapping.Context) argmapping.KernelSignature {
	return argmapping.KernelSignature{
		Name:    "cholesky_grad",
		Inputs:  []string{"Out", argmapping.GradVarName("Out")},
		Attrs:   []string{"upper"},
		Outputs: []string{argmapping.GradVarName("X")},
	}
}

// Register adds the mappings of this package to m.
func Register(m *argmapping.FnMap) error {
	if err := m.Emplace("cholesky", "cholesky", argmapping.MappingFn(CholeskyArgumentMapping)); err != nil {
		return err
	}
	return m.Emplace("cholesky_grad", "cholesky_grad", argmapping.MappingFn(CholeskyGradArgumentMapping))
}

func init() {
	if err := Register(argmapping.DefaultFnMap); err != nil {
		klog.Fatalf("failed to register built-in argument mappings: %+v", err)
	}
}
