package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureSubdDir creates dirName under the working directory if needed and
// returns its absolute path.
func EnsureSubdDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// WriteInto streams into dirName/name through fill and returns the final
// path. The file only appears under its name once fill succeeded, so a
// failed download never leaves a truncated document behind.
func WriteInto(dirName, name string, fill func(w io.Writer) error) (string, error) {
	dir, err := EnsureSubdDir(dirName)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp.Name(), err)
	}

	final := filepath.Join(dir, filepath.Base(name))
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	return final, nil
}
