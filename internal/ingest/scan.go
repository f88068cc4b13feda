// Package ingest feeds rate confirmations dropped into an inbox directory
// through the extraction pipeline.
package ingest

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
)

// DefaultExts are the extensions the renderer accepts.
func DefaultExts() map[string]struct{} {
	exts := make(map[string]struct{}, len(constants.AllowedExtensions))
	for ext := range constants.AllowedExtensions {
		exts[ext] = struct{}{}
	}
	return exts
}

// Scan walks root and returns accepted files in lexical order. Hidden files
// and directories are skipped.
func Scan(root string, exts map[string]struct{}) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root is required")
	}
	if exts == nil {
		exts = DefaultExts()
	}
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && allowed(path, exts) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
