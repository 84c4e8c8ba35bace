// Package changelist models a source-level change set and loads one
// from a change-list file.
package changelist

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ChangeList holds three disjoint sets of repo-relative source paths.
type ChangeList struct {
	Created []string `json:"created,omitempty" yaml:"created,omitempty"`
	Updated []string `json:"updated,omitempty" yaml:"updated,omitempty"`
	Deleted []string `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

// IsEmpty reports whether the change list names no paths.
func (c ChangeList) IsEmpty() bool {
	return len(c.Created) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Len returns the total number of changed paths.
func (c ChangeList) Len() int {
	return len(c.Created) + len(c.Updated) + len(c.Deleted)
}

// Validate rejects empty paths, duplicates within a set, and any path
// appearing in more than one of the three sets.
func (c ChangeList) Validate() error {
	seen := make(map[string]string, c.Len())
	check := func(set string, paths []string) error {
		for _, p := range paths {
			if p == "" {
				return fmt.Errorf("change list: empty path in %s set", set)
			}
			if prev, ok := seen[p]; ok {
				if prev == set {
					return fmt.Errorf("change list: duplicate path %q in %s set", p, set)
				}
				return fmt.Errorf("change list: path %q appears in both %s and %s sets", p, prev, set)
			}
			seen[p] = set
		}
		return nil
	}
	if err := check("created", c.Created); err != nil {
		return err
	}
	if err := check("updated", c.Updated); err != nil {
		return err
	}
	return check("deleted", c.Deleted)
}

// Normalize returns a copy with every path cleaned, slash-separated and
// made repo-relative. Absolute paths inside repoRoot are relativized;
// paths outside the repo are rejected.
func (c ChangeList) Normalize(repoRoot string) (ChangeList, error) {
	normalizeSet := func(paths []string) ([]string, error) {
		if len(paths) == 0 {
			return nil, nil
		}
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			n, err := NormalizePath(repoRoot, p)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}

	var (
		out ChangeList
		err error
	)
	if out.Created, err = normalizeSet(c.Created); err != nil {
		return ChangeList{}, err
	}
	if out.Updated, err = normalizeSet(c.Updated); err != nil {
		return ChangeList{}, err
	}
	if out.Deleted, err = normalizeSet(c.Deleted); err != nil {
		return ChangeList{}, err
	}
	return out, nil
}

// NormalizePath cleans a single path and makes it repo-relative.
// Returns an error for paths escaping the repo root.
func NormalizePath(repoRoot, path string) (string, error) {
	p := filepath.ToSlash(filepath.Clean(path))
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(repoRoot, path)
		if err != nil {
			return "", fmt.Errorf("change list: path %q is not relative to repo root: %w", path, err)
		}
		p = filepath.ToSlash(rel)
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("change list: path %q escapes the repo root", path)
	}
	return p, nil
}
