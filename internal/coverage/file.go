package coverage

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile serializes the list and writes it to path atomically: the
// bytes land in a temp file in the same directory which is then
// renamed over the destination, so readers never observe a torn file.
func WriteFile(path string, list SourceCoveringTestsList) error {
	data, err := Serialize(list)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write coverage file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write coverage file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write coverage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write coverage file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write coverage file: %w", err)
	}
	return nil
}

// ReadFile reads and deserializes a coverage file. A missing file is
// reported as os.ErrNotExist so callers can treat it as "no impact
// analysis data yet" rather than a defect.
func ReadFile(path string) (SourceCoveringTestsList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceCoveringTestsList{}, fmt.Errorf("read coverage file: %w", err)
	}
	return Deserialize(data)
}
