package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/gokernels/status"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// execute runs kernelinfo with the given arguments and returns its output.
func execute(args ...string) (string, error) {
	cmd := newRootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMappings(t *testing.T) {
	out, err := execute("mappings", "--format", "json")
	require.NoError(t, err)
	var doc map[string][]map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Contains(t, doc["mappings"], map[string]string{
		"op_type": "cholesky_grad", "api_name": "cholesky_grad", "kernel": "cholesky_grad",
		"inputs": "Out, Out@GRAD", "attrs": "upper", "outputs": "X@GRAD",
	})

	out, err = execute("mappings")
	require.NoError(t, err)
	require.Contains(t, out, "OP_TYPE")
	require.Contains(t, out, "cholesky")
}

func TestLibraries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "libcustom_kernel_relu.so"), nil, 0o644))
	out, err := execute("libraries", "--search-path", dir, "-f", "yaml")
	require.NoError(t, err)
	var doc map[string][]map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Equal(t, []map[string]string{{"name": "relu", "path": filepath.Join(dir, "libcustom_kernel_relu.so")}}, doc["libraries"])
	require.Equal(t, []map[string]string{{"path": dir}}, doc["search_paths"])
}

func TestConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conv_kernels.so"), nil, 0o644))
	cfgPath := filepath.Join(dir, "kernelinfo.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("format: json\nsearch_paths:\n  - "+dir+"\n"), 0o644))
	out, err := execute("libraries", "--config", cfgPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "expected JSON output, got %q", out)
	require.Contains(t, out, "conv_kernels.so")

	// Flags take precedence over the environment.
	t.Setenv("GOKERNELS_FORMAT", "yaml")
	out, err = execute("mappings")
	require.NoError(t, err)
	require.Contains(t, out, "mappings:")
	out, err = execute("mappings", "--format", "text")
	require.NoError(t, err)
	require.Contains(t, out, "OP_TYPE")

	_, err = execute("libraries", "--config", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoadMissingLibrary(t *testing.T) {
	_, err := execute("load", "--search-path", t.TempDir(), "missing")
	require.Error(t, err)
	require.True(t, status.Is(err, status.NotFound), "got %v", err)

	_, err = execute("load")
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	tables := []table{
		{name: "kernels", columns: []string{"op", "dtype"}, rows: [][]string{{"relu", "Float32"}, {"relu", "Float64"}}},
		{name: "empty", columns: []string{"x"}},
	}
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "text", tables...))
	require.Equal(t, "kernels (2):\nOP    DTYPE\nrelu  Float32\nrelu  Float64\n\nempty (0):\n", buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, "JSON", tables...))
	var doc map[string][]map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, map[string]string{"op": "relu", "dtype": "Float64"}, doc["kernels"][1])
	require.Empty(t, doc["empty"])

	require.Error(t, render(&buf, "xml", tables...))
}
