package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, log bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&log)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), log.String(), err
}

func TestKernelCommand(t *testing.T) {
	out, _, err := run(t, "kernel")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Kernel B-spline ===")
	assert.Contains(t, out, "Extent: 2\n")
	assert.Contains(t, out, "Volume integral: 1.0000000000")

	out, _, err = run(t, "kernel", "--tabulate", "--interpolation", "akima")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Kernel table(B-spline) ===")
}

func TestTableCommand(t *testing.T) {
	out, stderr, err := run(t, "table", "--every", "100")
	require.NoError(t, err)
	assert.Contains(t, stderr, "calibration table built")

	var dump tableDump
	require.NoError(t, yaml.Unmarshal([]byte(out), &dump))
	assert.Equal(t, "B-spline", dump.Kernel)
	assert.Equal(t, 500, dump.Size)
	assert.Equal(t, 10.0, dump.MaxDensity)
	require.Len(t, dump.Samples, 5)
	assert.Equal(t, 0.0, dump.Samples[0].NPerH)
	assert.Equal(t, 0.0, dump.Samples[0].Sum)
	assert.InDelta(t, 2.0, dump.Samples[1].NPerH, 1e-12)
	for i := 1; i < len(dump.Samples); i++ {
		assert.Greater(t, dump.Samples[i].Sum, dump.Samples[i-1].Sum)
	}
	assert.Equal(t, 0.0, dump.SumBounds[0])
	assert.Greater(t, dump.SumBounds[1], dump.Samples[4].Sum)

	out, _, err = run(t, "table", "--size", "50", "--max-density", "5", "--every", "10")
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal([]byte(out), &dump))
	assert.Equal(t, 50, dump.Size)
	assert.Len(t, dump.Samples, 5)
	assert.InDelta(t, 1.0, dump.Samples[1].NPerH, 1e-12)

	_, _, err = run(t, "table", "--every", "0")
	assert.Error(t, err)
}

func TestRelaxCommand(t *testing.T) {
	csvFile := filepath.Join(t.TempDir(), "particles.csv")
	out, stderr, err := run(t, "relax", "--n", "4", "--spacing", "0.5", "--steps", "2",
		"--workers", "2", "--csv", csvFile, "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "Particles: 64")
	assert.Contains(t, out, "Steps: 2 in")
	assert.Contains(t, stderr, "configuration loaded")
	assert.Equal(t, 2, strings.Count(stderr, "relaxation step"))

	data, err := os.ReadFile(csvFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 65)
	assert.True(t, strings.HasPrefix(lines[0], "x,y,z,det_h"))
}

func TestConfigFileAndErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  n_per_h: 3.5\n"), 0o644))
	out, _, err := run(t, "kernel", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "n_per_h=3.5")

	_, _, err = run(t, "kernel", "--log-level", "loud")
	assert.Error(t, err)
	_, _, err = run(t, "kernel", "--n-per-h=-1")
	assert.Error(t, err)
	_, _, err = run(t, "kernel", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
