// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
)

// UnknownBatch is the batch code of an archive whose name has no match.
const UnknownBatch = "unknown"

// DefaultBatchPattern matches the first run of at least eight digits.
var DefaultBatchPattern = regexp.MustCompile(`\d{8,}`)

// CompileBatchPattern compiles a batch code pattern, falling back to
// DefaultBatchPattern when expr is empty.
func CompileBatchPattern(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return DefaultBatchPattern, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling batch code pattern %q: %w", expr, err)
	}
	return re, nil
}

// BatchCode derives the batch code from an archive's base filename. When re
// has a capture group the first group is used, otherwise the whole match.
func BatchCode(name string, re *regexp.Regexp) string {
	if re == nil {
		re = DefaultBatchPattern
	}
	m := re.FindStringSubmatch(filepath.Base(name))
	switch {
	case m == nil:
		return UnknownBatch
	case len(m) > 1 && m[1] != "":
		return m[1]
	default:
		return m[0]
	}
}
