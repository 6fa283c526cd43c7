// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/newswrangle/pkg/types"
)

const (
	// retainedDir holds byte-for-byte copies of the last extracted archive set.
	retainedDir = "retained"
	// pendingMarker exists in the state directory while a reset and
	// re-extraction is in progress. Its presence on startup means the
	// previous run stopped half way and derived state cannot be trusted.
	pendingMarker = "ingest.pending"
)

// ErrUnsafeReset is returned when asked to reset a filesystem root or the
// working directory itself.
var ErrUnsafeReset = errors.New("refusing to reset directory")

// ResetDirs deletes each directory with everything in it and recreates it
// empty. Missing directories are not an error, so a reset interrupted at any
// point can simply be run again.
func ResetDirs(dirs ...string) error {
	for _, d := range dirs {
		if d == "" {
			continue
		}
		clean := filepath.Clean(d)
		if clean == "." || clean == string(filepath.Separator) || clean == filepath.VolumeName(clean)+string(filepath.Separator) {
			return fmt.Errorf("%w: %q", ErrUnsafeReset, d)
		}
		if err := os.RemoveAll(clean); err != nil {
			return fmt.Errorf("removing %s: %w", clean, err)
		}
		if err := os.MkdirAll(clean, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", clean, err)
		}
	}
	return nil
}

// matchesRetained reports whether the retained copies in dir are exactly the
// given archives: same names, same bytes.
func matchesRetained(archives []string, dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading retained archives %s: %w", dir, err)
	}

	retained := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			retained[e.Name()] = true
		}
	}
	if len(retained) != len(archives) {
		return false, nil
	}

	for _, a := range archives {
		name := filepath.Base(a)
		if !retained[name] {
			return false, nil
		}
		same, err := sameContent(a, filepath.Join(dir, name))
		if err != nil {
			return false, fmt.Errorf("comparing %s: %w", name, err)
		}
		if !same {
			return false, nil
		}
	}
	return true, nil
}

// retain replaces the retained copies in dir with the given archives.
func retain(archives []string, dir string) error {
	if err := ResetDirs(dir); err != nil {
		return err
	}
	for _, a := range archives {
		if err := copyFile(a, filepath.Join(dir, filepath.Base(a))); err != nil {
			return fmt.Errorf("retaining %s: %w", filepath.Base(a), err)
		}
	}
	return nil
}

// digest computes the SHA-256 and size of an archive.
func digest(path string) (types.ArchiveDigest, error) {
	d := types.ArchiveDigest{Name: filepath.Base(path)}
	f, err := os.Open(path)
	if err != nil {
		return d, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return d, err
	}
	d.SHA256 = hex.EncodeToString(h.Sum(nil))
	d.Size = n
	return d, nil
}

func markPending(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return os.WriteFile(filepath.Join(stateDir, pendingMarker), nil, 0o644)
}

func clearPending(stateDir string) error {
	err := os.Remove(filepath.Join(stateDir, pendingMarker))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing pending marker: %w", err)
	}
	return nil
}

func isPending(stateDir string) bool {
	_, err := os.Stat(filepath.Join(stateDir, pendingMarker))
	return err == nil
}
