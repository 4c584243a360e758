package stage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// CopyTree copies the contents of src into dst, following symbolic links and
// skipping entries matched by exclude. dst is created when missing; existing
// entries that are not overwritten are left alone.
func CopyTree(src, dst string, exclude ExcludeFunc) (int, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("source is not a directory: %s", src)
	}
	c := &copier{exclude: exclude, visiting: map[string]bool{}}
	if err := c.dir(src, dst, "", info.Mode().Perm()); err != nil {
		return c.files, err
	}
	return c.files, nil
}

type copier struct {
	exclude  ExcludeFunc
	visiting map[string]bool
	files    int
}

func (c *copier) dir(src, dst, rel string, perm os.FileMode) error {
	// Symlinked directories are followed; guard against link cycles.
	real, err := filepath.EvalSymlinks(src)
	if err != nil {
		return err
	}
	if c.visiting[real] {
		return fmt.Errorf("symlink cycle at %s", src)
	}
	c.visiting[real] = true
	defer delete(c.visiting, real)

	if err := os.MkdirAll(dst, perm|0o700); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		childRel := path.Join(rel, entry.Name())
		if c.exclude != nil && c.exclude(childRel) {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		// os.Stat follows links, so a link is copied as whatever it points to.
		info, err := os.Stat(srcPath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := c.dir(srcPath, dstPath, childRel, info.Mode().Perm()); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath, info.Mode().Perm()); err != nil {
			return err
		}
		c.files++
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	// A previous stage may have left a link at dst; replace it rather than writing through it.
	if fi, err := os.Lstat(dst); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	if err := dstFile.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, perm)
}
