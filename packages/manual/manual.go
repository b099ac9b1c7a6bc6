// Package manual reads the hand-maintained override list.
package manual

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dancharlton9/gambling-blocklist/packages/classifier"
	"github.com/dancharlton9/gambling-blocklist/packages/domain"
)

// Load reads path and returns its valid, non-excluded domains in file order.
// A missing file is not an error.
func Load(path string, exclusions []string) ([]domain.Domain, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("Manual list not found, skipping", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("open manual list: %w", err)
	}
	defer f.Close()

	domains, err := Parse(f, exclusions)
	if err != nil {
		return nil, fmt.Errorf("read manual list %s: %w", path, err)
	}
	slog.Info("Loaded manual domains", "path", path, "count", len(domains))
	return domains, nil
}

// Parse reads newline-delimited domains, skipping blank lines, '#' comments,
// malformed entries and anything under an exclusion apex. Duplicates are dropped.
func Parse(r io.Reader, exclusions []string) ([]domain.Domain, error) {
	scanner := bufio.NewScanner(r)
	seen := make(map[domain.Domain]struct{})
	var out []domain.Domain

	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		d, ok := domain.Normalize(text)
		if !ok {
			slog.Debug("Manual list: skipping malformed entry", "line", line, "value", text)
			continue
		}
		if classifier.IsExcluded(d, exclusions) {
			slog.Debug("Manual list: skipping excluded entry", "line", line, "domain", d)
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out, scanner.Err()
}
