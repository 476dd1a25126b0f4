package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	errs "wosexport/pkg/errors"
)

// LockName is the file that marks a profile directory as in use
const LockName = ".wosexport.lock"

// lockProfile creates the lock file exclusively and returns its release
func lockProfile(dir string) (func() error, error) {
	path := filepath.Join(dir, LockName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			owner, _ := os.ReadFile(path)
			return nil, errs.Validation("session.lock",
				"profile %s is in use by pid %s; delete %s if that process is gone",
				dir, strings.TrimSpace(string(owner)), path)
		}
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}

	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write profile lock: %w", firstErr(werr, cerr))
	}

	return func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to release profile lock: %w", err)
		}
		return nil
	}, nil
}

func firstErr(list ...error) error {
	for _, err := range list {
		if err != nil {
			return err
		}
	}
	return nil
}

// prepareDirs creates the working directories, failing on anything that
// exists but is not a directory
func prepareDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			return errs.Validation("session.prepare", "%s exists and is not a directory", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errs.Wrap(errs.ErrorTypeValidation, "session.prepare", err)
		}
	}
	return nil
}
