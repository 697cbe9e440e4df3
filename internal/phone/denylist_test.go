package phone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenylist_Contains(t *testing.T) {
	d := NewDenylist([]string{"+5511999999999", "0000000000"})

	assert.True(t, d.Contains("+5511999999999"))
	assert.True(t, d.Contains("55 (11) 99999-9999"), "digit-only comparison")
	assert.True(t, d.Contains("00000 00000"))
	assert.False(t, d.Contains("+5511998457676"))
	assert.Equal(t, 2, d.Len())
}

func TestDenylist_NilSafe(t *testing.T) {
	var d *Denylist
	assert.False(t, d.Contains("+5511999999999"))
	assert.Equal(t, 0, d.Len())
}

func TestLoadDenylist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "denylist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("numbers:\n  - \"+5511999999999\"\n  - \"1234567890\"\n"), 0o644))

	d, err := LoadDenylist(path)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.True(t, d.Contains("5511999999999"))
}

func TestLoadDenylist_MissingFile(t *testing.T) {
	_, err := LoadDenylist(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
