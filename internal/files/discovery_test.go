package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func TestIsWorkbook(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"north_BBH.xlsx", true},
		{"NORTH_DAY.XLSX", true},
		{"macro.xlsm", true},
		{"legacy.xls", false},
		{"data.csv", false},
		{"~$north_BBH.xlsx", false},
		{"/tmp/in/~$x.xlsx", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWorkbook(tt.name))
		})
	}
}

func TestFindWorkbooks(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b_DAY.xlsx", "a_BBH.xlsx", "~$a_BBH.xlsx", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.xlsx"), 0o755))

	found, err := NewDiscovery("").FindWorkbooks(dir)
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, "a_BBH.xlsx", found[0].Name)
	assert.Equal(t, "b_DAY.xlsx", found[1].Name)
	assert.Equal(t, int64(1), found[0].Size)
}

func TestFindWorkbooks_RelativeToBase(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "in"), 0o755))
	touch(t, filepath.Join(base, "in"), "x.xlsx")

	found, err := NewDiscovery(base).FindWorkbooks("in")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(base, "in", "x.xlsx"), found[0].Path)

	_, err = NewDiscovery(base).FindWorkbooks("missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExpand(t *testing.T) {
	base := t.TempDir()
	in := filepath.Join(base, "in")
	require.NoError(t, os.Mkdir(in, 0o755))
	touch(t, in, "a.xlsx", "b.xlsx", "skip.csv")
	touch(t, base, "single.xlsx")

	d := NewDiscovery(base)

	t.Run("files and directories", func(t *testing.T) {
		paths, err := d.Expand([]string{"single.xlsx", "in", filepath.Join(in, "a.xlsx")})
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(base, "single.xlsx"),
			filepath.Join(in, "a.xlsx"),
			filepath.Join(in, "b.xlsx"),
		}, paths)
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := d.Expand([]string{"nope.xlsx"})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("no workbooks", func(t *testing.T) {
		empty := filepath.Join(base, "empty")
		require.NoError(t, os.Mkdir(empty, 0o755))
		_, err := d.Expand([]string{empty})
		assert.ErrorIs(t, err, ErrNoWorkbooks)
	})
}
