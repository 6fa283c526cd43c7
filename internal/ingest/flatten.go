// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FlatName returns the collision-safe flattened name for a JSON file:
// "<stem>_<batchCode>.json".
func FlatName(filename, batchCode string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_" + batchCode + ".json"
}

// FlattenDocuments copies every file with a case-insensitive .json
// extension found under extractDir into flatDir, renamed with FlatName.
// Existing files are overwritten, so when two sources map to the same name
// the last one copied survives. The walk is lexical, which makes the
// survivor deterministic. It returns the number of files copied and how
// many of those replaced an existing flattened file.
func FlattenDocuments(extractDir, flatDir, batchCode string) (copied, overwritten int, err error) {
	err = filepath.WalkDir(extractDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			return nil
		}

		dst := filepath.Join(flatDir, FlatName(d.Name(), batchCode))
		if _, statErr := os.Stat(dst); statErr == nil {
			overwritten++
		}
		if err := copyFile(path, dst); err != nil {
			return fmt.Errorf("copying %s: %w", d.Name(), err)
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, overwritten, fmt.Errorf("flattening %s: %w", extractDir, err)
	}
	return copied, overwritten, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(dst, in)
}

// CountDocuments returns the number of regular files in dir whose names
// match pattern. A missing directory counts as zero.
func CountDocuments(dir, pattern string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("matching %s in %s: %w", pattern, dir, err)
	}
	n := 0
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			n++
		}
	}
	return n, nil
}

// sameContent compares two files byte for byte.
func sameContent(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if ai.Size() != bi.Size() {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	const chunk = 64 * 1024
	bufA := make([]byte, chunk)
	bufB := make([]byte, chunk)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA == io.EOF || errA == io.ErrUnexpectedEOF {
			return errB == io.EOF || errB == io.ErrUnexpectedEOF, nil
		}
		if errA != nil {
			return false, errA
		}
		if errB != nil {
			return false, errB
		}
	}
}
