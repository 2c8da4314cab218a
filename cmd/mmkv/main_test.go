package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestCLI_Flow(t *testing.T) {
	base := t.TempDir()
	with := func(args ...string) []string { return append([]string{"--base-dir", base, "--id", "cli"}, args...) }

	_, err := run(t, with("set", "name", "ann")...)
	require.NoError(t, err)
	_, err = run(t, with("set", "--type", "number", "age", "30")...)
	require.NoError(t, err)
	_, err = run(t, with("set", "--type", "buffer", "raw", "0102ff")...)
	require.NoError(t, err)

	out, err := run(t, with("get", "name")...)
	require.NoError(t, err)
	assert.Equal(t, "ann", out)
	out, err = run(t, with("get", "raw")...)
	require.NoError(t, err)
	assert.Equal(t, "0102ff", out)
	out, err = run(t, with("get", "--type", "number", "age")...)
	require.NoError(t, err)
	assert.Equal(t, "30", out)

	out, err = run(t, with("keys")...)
	require.NoError(t, err)
	assert.Equal(t, "age\nname\nraw", out)

	_, err = run(t, with("encrypt", "0123456789abcdef")...)
	require.NoError(t, err)
	_, err = run(t, with("get", "name")...)
	assert.Error(t, err)
	out, err = run(t, with("--encryption-key", "0123456789abcdef", "get", "name")...)
	require.NoError(t, err)
	assert.Equal(t, "ann", out)
	_, err = run(t, with("--encryption-key", "0123456789abcdef", "decrypt")...)
	require.NoError(t, err)

	out, err = run(t, with("remove", "name")...)
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	_, err = run(t, "--base-dir", base, "--id", "copy", "import", "cli")
	require.NoError(t, err)
	out, err = run(t, "--base-dir", base, "--id", "copy", "keys")
	require.NoError(t, err)
	assert.Equal(t, "age\nraw", out)
	out, err = run(t, "--base-dir", base, "--id", "copy", "keys", "--exclude", "r*")
	require.NoError(t, err)
	assert.Equal(t, "age", out)

	_, err = run(t, "--base-dir", base, "--id", "partial", "import", "cli", "--max-value-size", "4")
	require.NoError(t, err)
	out, err = run(t, "--base-dir", base, "--id", "partial", "keys")
	require.NoError(t, err)
	assert.Equal(t, "raw", out)

	out, err = run(t, "--base-dir", base, "exists", "cli")
	require.NoError(t, err)
	assert.Equal(t, "true", out)
	out, err = run(t, "--base-dir", base, "delete", "cli")
	require.NoError(t, err)
	assert.Equal(t, "true", out)
	out, err = run(t, "--base-dir", base, "exists", "cli")
	require.NoError(t, err)
	assert.Equal(t, "false", out)

	assert.FileExists(t, filepath.Join(base, "mmkv", "copy.mmkv"))
}

func TestCLI_Fallback(t *testing.T) {
	_, err := run(t, "--fallback", "memory", "--encryption-key", "k", "set", "a", "b")
	assert.Error(t, err)
	out, err := run(t, "--fallback", "memory", "size")
	require.NoError(t, err)
	assert.Equal(t, "0", out)
}

func TestParse(t *testing.T) {
	_, err := parse("maybe", "bool")
	assert.Error(t, err)
	_, err = parse("zz", "buffer")
	assert.Error(t, err)
	_, err = parse("x", "date")
	assert.Error(t, err)
	v, err := parse("1e3", "number")
	require.NoError(t, err)
	assert.Equal(t, "1000", format(v))
}
