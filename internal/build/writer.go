package build

import (
	"os"
	"path/filepath"

	"github.com/conneroisu/sitepack/internal/errors"
)

// writeOutputs writes files below a staging directory next to outDir and
// then moves them into place. With clean the staging directory replaces
// outDir; otherwise the files are moved over the existing tree.
func writeOutputs(outDir string, files []OutputFile, clean bool) error {
	parent := filepath.Dir(outDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return outputError("cannot create output parent", parent, err)
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(outDir)+"-")
	if err != nil {
		return outputError("cannot create staging directory", parent, err)
	}
	defer os.RemoveAll(staging)

	if err := os.Chmod(staging, 0o755); err != nil {
		return outputError("cannot prepare staging directory", staging, err)
	}

	for _, f := range files {
		if err := writeFile(filepath.Join(staging, filepath.FromSlash(f.Path)), f.contents); err != nil {
			return err
		}
	}

	if clean {
		return swap(staging, outDir)
	}

	return merge(staging, outDir, files)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return outputError("cannot create directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return outputError("cannot write file", path, err)
	}

	return nil
}

// swap replaces outDir with staging, restoring the previous tree if the
// final rename fails.
func swap(staging, outDir string) error {
	backup := ""
	if _, err := os.Stat(outDir); err == nil {
		backup = staging + ".previous"
		if err := os.Rename(outDir, backup); err != nil {
			return outputError("cannot move previous output aside", outDir, err)
		}
	}

	if err := os.Rename(staging, outDir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, outDir)
		}
		return outputError("cannot move build into place", outDir, err)
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return outputError("cannot remove previous output", backup, err)
		}
	}

	return nil
}

func merge(staging, outDir string, files []OutputFile) error {
	for _, f := range files {
		dst := filepath.Join(outDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return outputError("cannot create directory", filepath.Dir(dst), err)
		}
		if err := os.Rename(filepath.Join(staging, filepath.FromSlash(f.Path)), dst); err != nil {
			return outputError("cannot move file into place", dst, err)
		}
	}

	return nil
}

func outputError(message, path string, cause error) error {
	return errors.NewConfigurationError(errors.CodeOutput, message).WithPath(path).WithCause(cause)
}
