package coverage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// The on-disk form is canonical JSON: entries and test names are
// emitted in ascending order, strings are NFC normalized, and HTML
// escaping is disabled. Equal indices serialize to identical bytes,
// which is what the golden tests pin.

type serializedEntry struct {
	Path        string   `json:"path"`
	TestTargets []string `json:"test_targets"`
}

type serializedList struct {
	Sources []serializedEntry `json:"sources"`
}

// Serialize encodes the list into its canonical byte form.
func Serialize(list SourceCoveringTestsList) ([]byte, error) {
	out := serializedList{Sources: make([]serializedEntry, 0, list.NumSources())}
	for _, e := range list.Entries() {
		tests := make([]string, len(e.TestTargets))
		for i, t := range e.TestTargets {
			tests[i] = norm.NFC.String(t)
		}
		out.Sources = append(out.Sources, serializedEntry{
			Path:        norm.NFC.String(e.Path),
			TestTargets: tests,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("serialize source covering tests: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Deserialize decodes canonical bytes back into a list. Unknown fields
// are rejected so a corrupted or foreign file fails loudly instead of
// loading as empty coverage.
func Deserialize(data []byte) (SourceCoveringTestsList, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return SourceCoveringTestsList{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var in serializedList
	if err := dec.Decode(&in); err != nil {
		return SourceCoveringTestsList{}, fmt.Errorf("deserialize source covering tests: %w", err)
	}

	raw := make([]SourceCoveringTests, 0, len(in.Sources))
	for _, e := range in.Sources {
		if e.Path == "" {
			return SourceCoveringTestsList{}, fmt.Errorf("deserialize source covering tests: entry with empty path")
		}
		raw = append(raw, SourceCoveringTests{Path: e.Path, TestTargets: e.TestTargets})
	}
	return NewSourceCoveringTestsList(raw), nil
}
