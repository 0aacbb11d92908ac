package compiler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/conneroisu/spoon/internal/errors"
	"github.com/conneroisu/spoon/internal/logging"
)

// Permissions of cache directories and units.
const (
	DirMode  os.FileMode = 0o755
	FileMode os.FileMode = 0o644
)

// Destination returns where Write persists the unit.
func (c *Compiler) Destination() string {
	return filepath.Join(c.env.CacheDir(), c.env.CacheFilename(c.filename))
}

// Write compiles the template file and atomically replaces its cached unit.
// It returns the destination path.
func (c *Compiler) Write() (string, error) {
	ctx := context.Background()
	op := logging.StartOperation(c.logger, "write")

	src, err := afero.ReadFile(c.fs, c.filename)
	if err != nil {
		err = errors.NewIOError(errors.ErrCodeReadSource, c.filename, err)
		op.EndWithError(ctx, err)
		return "", err
	}

	unit, err := c.Compile(src)
	if err != nil {
		op.EndWithError(ctx, err)
		return "", err
	}

	dest := c.Destination()
	if err := Persist(c.fs, dest, []byte(unit)); err != nil {
		op.EndWithError(ctx, err)
		return "", err
	}

	op.End(ctx, "file", c.filename, "dest", dest)
	c.logger.Info(ctx, "Wrote compiled template", "file", c.filename, "dest", dest, "bytes", len(unit))
	return dest, nil
}

// Persist writes data to a temporary file in dest's directory and renames it
// onto dest. On failure the temporary file is removed and any previous dest
// is left as it was.
func Persist(fs afero.Fs, dest string, data []byte) (err error) {
	dir := filepath.Dir(dest)
	if err := fs.MkdirAll(dir, DirMode); err != nil {
		return errors.NewCachePersistenceError(errors.ErrCodeCreateDir, dest, err)
	}

	tmp, err := afero.TempFile(fs, dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return errors.NewCachePersistenceError(errors.ErrCodeTempFile, dest, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.NewCachePersistenceError(errors.ErrCodeTempFile, dest, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.NewCachePersistenceError(errors.ErrCodeTempFile, dest, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewCachePersistenceError(errors.ErrCodeTempFile, dest, err)
	}
	if err := fs.Chmod(tmpName, FileMode); err != nil {
		return errors.NewCachePersistenceError(errors.ErrCodeTempFile, dest, err)
	}
	if err := fs.Rename(tmpName, dest); err != nil {
		return errors.NewCachePersistenceError(errors.ErrCodeRename, dest, err)
	}
	return nil
}
