package changelist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a change-list file. The encoding is picked by extension:
// .json for JSON, .yaml/.yml for YAML. The loaded list is validated
// but not normalized; callers normalize against their repo root.
func Load(path string) (ChangeList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ChangeList{}, fmt.Errorf("load change list: %w", err)
	}

	var cl ChangeList
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cl); err != nil {
			return ChangeList{}, fmt.Errorf("load change list %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cl); err != nil {
			return ChangeList{}, fmt.Errorf("load change list %s: %w", path, err)
		}
	default:
		return ChangeList{}, fmt.Errorf("load change list %s: unsupported extension %q", path, ext)
	}

	if err := cl.Validate(); err != nil {
		return ChangeList{}, fmt.Errorf("load change list %s: %w", path, err)
	}
	return cl, nil
}
