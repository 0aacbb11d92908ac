package compiler_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/spoon/internal/compiler"
	"github.com/conneroisu/spoon/internal/errors"
)

// failingFs fails the selected step of the persistence protocol.
type failingFs struct {
	afero.Fs
	failRename bool
	failMkdir  bool
}

func (f *failingFs) Rename(oldname, newname string) error {
	if f.failRename {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrPermission}
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *failingFs) MkdirAll(path string, perm os.FileMode) error {
	if f.failMkdir {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrPermission}
	}
	return f.Fs.MkdirAll(path, perm)
}

func tempFiles(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	var tmp []string
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			tmp = append(tmp, e.Name())
		}
	}
	return tmp
}

func TestWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "templates/hello.tpl", []byte("Hello {{ name }}!"), 0o644))

	env := newEnv("cache")
	c := compiler.New(env, "templates/hello.tpl", compiler.WithFs(fs))
	assert.Equal(t, "templates/hello.tpl", c.Filename())

	dest, err := c.Write()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("cache", env.CacheFilename("templates/hello.tpl")), dest)
	assert.Equal(t, dest, c.Destination())

	unit, err := afero.ReadFile(fs, dest)
	require.NoError(t, err)
	assert.Contains(t, string(unit), `out.append(escape(lookup(context, "name")))`)
	assert.Empty(t, tempFiles(t, fs, "cache"))
}

func TestWriteMissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := compiler.New(newEnv("cache"), "nope.tpl", compiler.WithFs(fs)).Write()

	var se *errors.SpoonError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, errors.ErrorTypeIO, se.Type)
	assert.Equal(t, errors.ErrCodeReadSource, se.Code)
}

func TestWriteSyntaxErrorLeavesCacheUntouched(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.tpl", []byte("{% nope %}"), 0o644))

	c := compiler.New(newEnv("cache"), "bad.tpl", compiler.WithFs(fs))
	_, err := c.Write()
	assert.True(t, errors.IsSyntax(err))

	exists, err := afero.Exists(fs, c.Destination())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPersistRenameFailureKeepsPreviousUnit(t *testing.T) {
	base := afero.NewMemMapFs()
	dest := "cache/views/page.star"
	require.NoError(t, base.MkdirAll("cache/views", 0o755))
	require.NoError(t, afero.WriteFile(base, dest, []byte("old"), 0o644))

	fs := &failingFs{Fs: base, failRename: true}
	err := compiler.Persist(fs, dest, []byte("new"))
	require.Error(t, err)
	assert.True(t, errors.IsCachePersistence(err))
	assert.True(t, errors.Is(err, &errors.SpoonError{Type: errors.ErrorTypeCachePersistence, Code: errors.ErrCodeRename}))
	assert.ErrorIs(t, err, os.ErrPermission)

	got, err := afero.ReadFile(base, dest)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
	assert.Empty(t, tempFiles(t, base, "cache/views"))
}

func TestPersistRenameFailureWithoutPreviousUnit(t *testing.T) {
	base := afero.NewMemMapFs()
	dest := "cache/new.star"

	err := compiler.Persist(&failingFs{Fs: base, failRename: true}, dest, []byte("data"))
	require.Error(t, err)

	exists, err := afero.Exists(base, dest)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, tempFiles(t, base, "cache"))
}

func TestPersistMkdirFailure(t *testing.T) {
	fs := &failingFs{Fs: afero.NewMemMapFs(), failMkdir: true}
	err := compiler.Persist(fs, "cache/a/b.star", []byte("x"))
	assert.True(t, errors.Is(err, &errors.SpoonError{Type: errors.ErrorTypeCachePersistence, Code: errors.ErrCodeCreateDir}))
}

func TestPersistPermissionsAreIdempotent(t *testing.T) {
	fs := afero.NewOsFs()
	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "unit.star")

	for i := 0; i < 2; i++ {
		require.NoError(t, compiler.Persist(fs, dest, []byte(fmt.Sprintf("v%d", i))))

		info, err := fs.Stat(dest)
		require.NoError(t, err)
		assert.Equal(t, compiler.FileMode, info.Mode().Perm())

		dirInfo, err := fs.Stat(filepath.Dir(dest))
		require.NoError(t, err)
		assert.True(t, dirInfo.IsDir())
	}

	got, err := afero.ReadFile(fs, dest)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestWriteUnchangedSourceTwice(t *testing.T) {
	fs := afero.NewOsFs()
	dir := t.TempDir()
	source := filepath.Join(dir, "hello.tpl")
	require.NoError(t, afero.WriteFile(fs, source, []byte("Hello {{ name|upper }}!\n"), 0o600))

	c := compiler.New(newEnv(filepath.Join(dir, "cache")), source, compiler.WithFs(fs))

	var units [][]byte
	var modes []os.FileMode
	for i := 0; i < 2; i++ {
		dest, err := c.Write()
		require.NoError(t, err)

		unit, err := afero.ReadFile(fs, dest)
		require.NoError(t, err)
		info, err := fs.Stat(dest)
		require.NoError(t, err)

		units = append(units, unit)
		modes = append(modes, info.Mode().Perm())
	}

	assert.Equal(t, units[0], units[1])
	assert.Equal(t, modes[0], modes[1])
	assert.Equal(t, compiler.FileMode, modes[1])
	assert.Empty(t, tempFiles(t, fs, filepath.Join(dir, "cache")))
}

func TestPersistConcurrentWriters(t *testing.T) {
	fs := afero.NewOsFs()
	dir := t.TempDir()
	dest := filepath.Join(dir, "shared.star")

	const writers = 8
	payloads := make(map[string]bool, writers)
	for i := 0; i < writers; i++ {
		payloads[strings.Repeat(fmt.Sprintf("writer %d\n", i), 512)] = true
	}

	var wg sync.WaitGroup
	for p := range payloads {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			assert.NoError(t, compiler.Persist(fs, dest, []byte(p)))
		}(p)
	}
	wg.Wait()

	got, err := afero.ReadFile(fs, dest)
	require.NoError(t, err)
	assert.True(t, payloads[string(got)], "final unit is not one writer's complete output")
	assert.Empty(t, tempFiles(t, fs, dir))
}
