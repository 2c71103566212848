package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/derafu/github/internal/apperror"
)

// requireLocalDisk rejects a history path that lives on a network mount,
// where SQLite file locking is unreliable. The nearest existing ancestor is
// inspected since the database file may not exist yet.
func requireLocalDisk(path string) error {
	dir, err := nearestExistingDir(path)
	if err != nil {
		return fmt.Errorf("resolve history path %q: %w", path, err)
	}
	fsName, err := networkFilesystem(dir)
	if err != nil {
		return fmt.Errorf("inspect filesystem of %q: %w", dir, err)
	}
	if fsName != "" {
		return remoteMountError(path, fsName)
	}
	return nil
}

func remoteMountError(path, fsName string) error {
	return apperror.Config(fmt.Sprintf(
		"deploy.history %q is on a %s mount; keep the deployment history on local disk", path, fsName))
}

func nearestExistingDir(path string) (string, error) {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(dir)
		switch {
		case err == nil && info.IsDir():
			return dir, nil
		case err == nil:
			return "", fmt.Errorf("%q is not a directory", dir)
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing ancestor of %q", path)
		}
		dir = parent
	}
}
