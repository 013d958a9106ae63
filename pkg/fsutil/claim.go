// Package fsutil provides filesystem utilities.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ClaimFile takes a directory and a pattern containing exactly one asterisk
// (e.g. "a*.log"). It opens a file in that directory, with a filename
// matching the pattern, with "*" replaced by a number. That number is one
// plus the largest of all existing files matching the pattern. If no
// existing files match the pattern, "*" is replaced by 0.
//
// It is useful for automatically determining unique names for log files.
func ClaimFile(dir, pattern string) (*os.File, error) {
	prefix, suffix, ok := splitPattern(pattern)
	if !ok {
		return nil, fmt.Errorf("pattern %q must contain exactly one asterisk", pattern)
	}

	max := -1
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if len(name) < len(prefix)+len(suffix) ||
			!strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		core := name[len(prefix) : len(name)-len(suffix)]
		if i, err := strconv.Atoi(core); err == nil && i > max {
			max = i
		}
	}

	for i := max + 1; ; i++ {
		name := filepath.Join(dir, prefix+strconv.Itoa(i)+suffix)
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, nil
		}
		// Another process may have claimed the file between the scan and the
		// open; try the next number.
		if !os.IsExist(err) {
			return nil, err
		}
	}
}

func splitPattern(pattern string) (prefix, suffix string, ok bool) {
	i := strings.IndexByte(pattern, '*')
	if i == -1 || strings.IndexByte(pattern[i+1:], '*') != -1 {
		return "", "", false
	}
	return pattern[:i], pattern[i+1:], true
}
