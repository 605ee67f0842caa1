package fileutils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// partialSuffix marks in-flight copies. A crash leaves a .partial file
// behind, never a truncated final file.
const partialSuffix = ".partial"

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SameSize reports whether two files exist and have equal sizes. Used to
// decide that a destination is already a finished copy of the source.
func SameSize(a, b string) bool {
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	return errA == nil && errB == nil && infoA.Size() == infoB.Size()
}

// CopyFile copies src to dst via a temporary file in dst's directory,
// verifies the byte count, then renames into place. The destination is
// either absent, a previous complete copy, or the new complete copy;
// readers never see a short file.
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sourceFile.Close()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return errors.WithStack(err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.WithStack(err)
	}

	tmpPath := dst + partialSuffix
	tmpFile, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, sourceInfo.Mode().Perm())
	if err != nil {
		return errors.WithStack(err)
	}

	written, err := io.Copy(tmpFile, sourceFile)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return errors.WithStack(err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.WithStack(err)
	}

	if written != sourceInfo.Size() {
		os.Remove(tmpPath)
		return errors.Errorf("short copy: wrote %d of %d bytes for %s", written, sourceInfo.Size(), src)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return errors.WithStack(err)
	}

	return nil
}
