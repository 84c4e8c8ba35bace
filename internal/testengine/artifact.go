package testengine

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// parseCoverageArtifact reads a coverage artifact: one covered source
// path per line, blank lines ignored. A missing artifact returns
// (nil, nil); the caller decides whether absence is tolerable.
func parseCoverageArtifact(path string) (*Coverage, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("coverage artifact %s: %w", path, err)
	}
	defer f.Close()

	var sources []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("coverage artifact %s: %w", path, err)
	}
	return &Coverage{SourcesCovered: sources}, nil
}
