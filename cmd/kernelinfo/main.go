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

// kernelinfo lists the kernel libraries available, loads them into a host and prints the resulting
// operator and kernel tables, and prints the registered argument mappings.
//
// Configuration is read from kernelinfo.yaml in the current directory or in ~/.config/gokernels,
// and from environment variables prefixed with GOKERNELS_ (e.g. GOKERNELS_FORMAT=json). Flags
// take precedence.
package main

import (
	"flag"
	"os"
	"path/filepath"

	_ "github.com/gomlx/gokernels/argmapping/compat"
	"github.com/gomlx/gokernels/framework"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// Config is the configuration of kernelinfo.
type Config struct {
	// KnownOps are the operators the host knows: kernels of other operators are not registered.
	KnownOps []string `mapstructure:"known_ops"`

	// SearchPaths where to search for libraries. If empty, framework.DefaultSearchPaths is used.
	SearchPaths []string `mapstructure:"search_paths"`

	// SkipUnknownOps selects framework.SkipUnknownOp instead of aborting the registration of a
	// library at the first kernel of an unknown operator.
	SkipUnknownOps bool `mapstructure:"skip_unknown_ops"`

	// Format of the output: text, json or yaml.
	Format string `mapstructure:"format"`
}

// hostOptions returns the options to create a framework.Host for the configuration.
func (cfg *Config) hostOptions() []framework.Option {
	var options []framework.Option
	if len(cfg.SearchPaths) > 0 {
		options = append(options, framework.WithSearchPaths(cfg.SearchPaths...))
	}
	if cfg.SkipUnknownOps {
		options = append(options, framework.WithUnknownOpPolicy(framework.SkipUnknownOp))
	}
	for _, opType := range cfg.KnownOps {
		options = append(options, framework.WithOpInfos(framework.OpInfo{Type: opType}))
	}
	return options
}

// newRootCmd creates the kernelinfo command, with its configuration bound to v.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var (
		cfgFile string
		cfg     Config
	)
	rootCmd := &cobra.Command{
		Use:           "kernelinfo",
		Short:         "Inspect custom kernel libraries",
		Long:          `kernelinfo lists the custom kernel libraries available in the search paths, loads them into a host and prints the registered operators and kernels.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v, cfgFile, &cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: kernelinfo.yaml in . or ~/.config/gokernels)")
	flags.StringP("format", "f", "text", "output format: text, json or yaml")
	flags.StringSlice("search-path", nil, "directories where to search for kernel libraries (default: $"+framework.LibraryPathsEnv+" or the system paths)")
	flags.StringSlice("known-op", nil, "operators known to the host, kernels of other operators are not registered")
	flags.Bool("skip-unknown-ops", false, "skip kernels of unknown operators, instead of aborting the registration of the library")
	bindFlags(v, flags, map[string]string{
		"format":           "format",
		"search_paths":     "search-path",
		"known_ops":        "known-op",
		"skip_unknown_ops": "skip-unknown-ops",
	})

	// Include klog flags (-v, -logtostderr, ...).
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	flags.AddGoFlagSet(klogFlags)

	rootCmd.AddCommand(newLibrariesCmd(&cfg), newLoadCmd(&cfg), newMappingsCmd(&cfg))
	return rootCmd
}

// bindFlags binds configuration keys to flags.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keysToFlags map[string]string) {
	for key, flagName := range keysToFlags {
		if err := v.BindPFlag(key, flags.Lookup(flagName)); err != nil {
			klog.Fatalf("failed to bind flag --%s: %v", flagName, err)
		}
	}
}

// loadConfig reads the configuration file (if any) and the environment into cfg.
func loadConfig(v *viper.Viper, cfgFile string, cfg *Config) error {
	v.SetDefault("format", "text")
	v.SetEnvPrefix("GOKERNELS")
	v.AutomaticEnv()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("kernelinfo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "gokernels"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return errors.Wrap(err, "reading configuration")
		}
	} else {
		klog.V(1).Infof("configuration read from %s", v.ConfigFileUsed())
	}
	if err := v.Unmarshal(cfg); err != nil {
		return errors.Wrap(err, "parsing configuration")
	}
	return nil
}

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		klog.Fatalf("kernelinfo: %+v", err)
	}
}
