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

package main

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/gokernels/argmapping"
	"github.com/gomlx/gokernels/framework"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLibrariesCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "List the kernel libraries found in the search paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h := framework.NewHost(cfg.hostOptions()...)
			libs := h.AvailableKernelLibraries()
			t := table{name: "libraries", columns: []string{"name", "path"}}
			for _, name := range slices.Sorted(maps.Keys(libs)) {
				t.rows = append(t.rows, []string{name, libs[name]})
			}
			searchPaths := table{name: "search_paths", columns: []string{"path"}}
			for _, p := range h.SearchPaths() {
				searchPaths.rows = append(searchPaths.rows, []string{p})
			}
			return render(cmd.OutOrStdout(), cfg.Format, t, searchPaths)
		},
	}
}

func newLoadCmd(cfg *Config) *cobra.Command {
	var withOps bool
	cmd := &cobra.Command{
		Use:   "load <library>...",
		Short: "Load kernel libraries into a host and print its operators and kernels",
		Long: `Load kernel libraries, given by path or by name (searched in the search paths), into a host and print its operators and kernels.

Only kernels of known operators (see --known-op) are registered, unless the library also registers
them as custom operators (see --ops).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := framework.NewHost(cfg.hostOptions()...)
			reports := table{name: "reports", columns: []string{"library", "registered", "skipped_ops", "aborted"}}
			for _, lib := range args {
				if withOps {
					if err := h.LoadOpMetaInfoAndRegisterOp(lib); err != nil {
						return err
					}
				}
				report, err := h.LoadKernelMetaInfoAndRegisterKernel(lib)
				if err != nil {
					return errors.WithMessagef(err, "loading %q", lib)
				}
				reports.rows = append(reports.rows, []string{
					lib, strconv.Itoa(report.Registered), strings.Join(report.SkippedOps, ", "), strconv.FormatBool(report.Aborted)})
			}
			return render(cmd.OutOrStdout(), cfg.Format, reports, operatorsTable(h), kernelsTable(h))
		},
	}
	cmd.Flags().BoolVar(&withOps, "ops", false, "also register the custom operators of the libraries")
	return cmd
}

func operatorsTable(h *framework.Host) table {
	t := table{name: "operators", columns: []string{"type", "inputs", "outputs", "attrs", "custom"}}
	for _, opType := range h.OpInfoMap().OpTypes() {
		info, _ := h.OpInfoMap().Get(opType)
		t.rows = append(t.rows, []string{opType,
			strings.Join(info.Inputs, ", "), strings.Join(info.Outputs, ", "), strings.Join(info.Attrs, ", "),
			strconv.FormatBool(info.Custom)})
	}
	return t
}

func kernelsTable(h *framework.Host) table {
	t := table{name: "kernels", columns: []string{"op", "place", "layout", "dtype", "library"}}
	kernels := h.OpKernelMap()
	for _, opName := range kernels.OpNames() {
		for _, kt := range kernels.KernelTypes(opName) {
			t.rows = append(t.rows, []string{opName, kt.Place.String(), kt.Layout.String(), kt.DType.String(), kt.Library.String()})
		}
	}
	return t
}

func newMappingsCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "Print the registered argument mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fnMap := argmapping.DefaultFnMap
			t := table{name: "mappings", columns: []string{"op_type", "api_name", "kernel", "inputs", "attrs", "outputs"}}
			for _, opType := range fnMap.OpTypes() {
				mapper, err := fnMap.Get(opType)
				if err != nil {
					return err
				}
				// Signature of an invocation with no arguments bound.
				sig := mapper.MapArguments(framework.NewExecutionContext(opType, nil))
				t.rows = append(t.rows, []string{opType, fnMap.APIName(opType), sig.Name,
					strings.Join(sig.Inputs, ", "), strings.Join(sig.Attrs, ", "), strings.Join(sig.Outputs, ", ")})
			}
			return render(cmd.OutOrStdout(), cfg.Format, t)
		},
	}
}
