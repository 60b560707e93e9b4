package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedServer_RoundTrip(t *testing.T) {
	t.Setenv("PAINEL_CONFIG_DIR", t.TempDir())

	selected, err := GetSelectedServer()
	require.NoError(t, err)
	assert.Empty(t, selected)

	require.NoError(t, SetSelectedServer("https://bi.example.com"))

	selected, err = GetSelectedServer()
	require.NoError(t, err)
	assert.Equal(t, "https://bi.example.com", selected)
}

func TestGetChannelDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAINEL_CONFIG_DIR", dir)

	got, err := GetChannelDir("https://bi.example.com:8443")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "channels", "https___bi.example.com_8443"), got)
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	t.Setenv("PAINEL_CONFIG_DIR", dir)

	require.NoError(t, SetSelectedServer("https://a.example.com"))
	require.NoError(t, SetSelectedServer("https://b.example.com"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.json", entries[0].Name())
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAINEL_CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0644))

	_, err := Load()
	assert.ErrorContains(t, err, "failed to parse")
}
