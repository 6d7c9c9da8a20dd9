package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/keyfinder/internal/digest"
	"github.com/mahdiidarabi/keyfinder/internal/stepper"
	"github.com/mahdiidarabi/keyfinder/pkg/keyfinder"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefaults(t *testing.T) {
	c, err := Load(newFlags(t, "--targets", "targets.txt"), "")
	require.NoError(t, err)

	assert.Equal(t, ModeRange, c.Mode)
	fc, err := c.FinderConfig()
	require.NoError(t, err)
	assert.Equal(t, keyfinder.DefaultConfig(), fc)

	mem, err := c.DeviceMemoryBytes()
	require.NoError(t, err)
	assert.Zero(t, mem)
}

func TestFlagsEnvAndFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "keyfinder.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"targets: from-file.txt\nbatch-size: 64\nworkers: 3\ncompression: uncompressed\n"), 0o600))

	t.Setenv("KEYFINDER_BATCH_SIZE", "128")
	t.Setenv("KEYFINDER_DEVICE_MEMORY", "2 GiB")

	c, err := Load(newFlags(t, "--workers", "5"), file)
	require.NoError(t, err)

	assert.Equal(t, "from-file.txt", c.Targets)
	assert.Equal(t, 128, c.BatchSize)
	assert.Equal(t, 5, c.Workers)

	mode, err := c.Compression()
	require.NoError(t, err)
	assert.Equal(t, digest.Uncompressed, mode)

	opts, err := c.CPUOptions()
	require.NoError(t, err)
	assert.Equal(t, keyfinder.CPUOptions{Workers: 5, Memory: 2 << 30}, opts)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no targets", nil},
		{"unknown mode", []string{"--targets", "t", "--mode", "walk"}},
		{"list without keys", []string{"--targets", "t", "--mode", "list"}},
		{"bad compression", []string{"--targets", "t", "--compression", "hybrid"}},
		{"bad memory", []string{"--targets", "t", "--device-memory", "lots"}},
		{"bad batch size", []string{"--targets", "t", "--batch-size", "0"}},
		{"bad result capacity", []string{"--targets", "t", "--result-capacity", "1"}},
		{"bad log format", []string{"--targets", "t", "--log-format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newFlags(t, tt.args...), "")
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(newFlags(t, "--targets", "t"), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRangeOrigin(t *testing.T) {
	c, err := Load(newFlags(t, "--targets", "t", "--start", "0x10", "--stride", "3", "--end", "ff"), "")
	require.NoError(t, err)

	origin, warnings, err := c.Origin()
	require.NoError(t, err)
	assert.Empty(t, warnings)

	rng, ok := origin.(keyfinder.SequentialRange)
	require.True(t, ok)
	assert.True(t, rng.Start.Equal(keyfinder.ScalarFromUint64(16)))
	assert.True(t, rng.Stride.Equal(keyfinder.ScalarFromUint64(3)))
	require.NotNil(t, rng.End)
	assert.True(t, rng.End.Equal(keyfinder.ScalarFromUint64(255)))

	c.Start = "xyz"
	_, _, err = c.Origin()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestZeroStrideIsInvalidStride(t *testing.T) {
	c, err := Load(newFlags(t, "--targets", "t", "--stride", "0"), "")
	require.NoError(t, err)

	origin, _, err := c.Origin()
	require.NoError(t, err)
	assert.ErrorIs(t, origin.Validate(), stepper.ErrInvalidStride)
}

func TestListOrigin(t *testing.T) {
	keys := filepath.Join(t.TempDir(), "keys.txt")
	require.NoError(t, os.WriteFile(keys, []byte("# keys\n1\nnot-a-key\n2\n"), 0o600))

	c, err := Load(newFlags(t, "--targets", "t", "--mode", "list", "--keys", keys), "")
	require.NoError(t, err)

	origin, warnings, err := c.Origin()
	require.NoError(t, err)
	list, ok := origin.(keyfinder.ExplicitList)
	require.True(t, ok)
	assert.Len(t, list.Keys, 2)
	require.Len(t, warnings, 1)
	assert.Equal(t, 3, warnings[0].Line)
}
