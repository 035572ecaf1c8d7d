package npy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.npy")
	in := []float64{0.1, 0.9999999, -3.5, 0, 42}

	require.NoError(t, WriteVector(path, in))
	out, err := ReadVector(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMatrixRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latent.npy")
	in := [][]float32{{1.5, -2.25, 0}, {0.125, 7, -1}}

	require.NoError(t, WriteMatrix(path, in))
	out, err := ReadMatrix(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBoolVectorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.npy")
	in := []bool{true, false, false, true, true}

	require.NoError(t, WriteBoolVector(path, in))
	out, err := ReadBoolVector(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDataAlignment(t *testing.T) {
	// The v1.0 format wants the data section on a 64 byte boundary.
	path := filepath.Join(t.TempDir(), "v.npy")
	require.NoError(t, WriteVector(path, []float64{1}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	headerLen := int(raw[8]) | int(raw[9])<<8
	assert.Zero(t, (10+headerLen)%64, "data section is not 64 byte aligned")
}

func TestReadVectorAcceptsFloat32(t *testing.T) {
	// Upstream tooling saves latents as float32; a float32 file read as a
	// vector must promote cleanly.
	path := filepath.Join(t.TempDir(), "m.npy")
	require.NoError(t, WriteMatrix(path, [][]float32{{0.5, 1.5}}))

	_, err := ReadVector(path)
	assert.Error(t, err, "2-D file must not read as a vector")
}

func TestWriteMatrixRagged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.npy")
	err := WriteMatrix(path, [][]float32{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.npy")
	require.NoError(t, os.WriteFile(path, []byte("not an npy file at all"), 0o644))

	_, err := ReadVector(path)
	assert.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadVector(filepath.Join(t.TempDir(), "nope.npy"))
	assert.Error(t, err)
}
