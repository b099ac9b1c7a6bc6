// Package output renders a registry snapshot into the published blocklist formats.
package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Format string

const (
	Plain   Format = "plain"
	Hosts   Format = "hosts"
	AdGuard Format = "adguard"
	Dnsmasq Format = "dnsmasq"
	Unbound Format = "unbound"
	JSON    Format = "json"
)

// TimestampLayout is used for both the header and the JSON "updated" field.
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// Formats lists every format with the file name it is written to.
var Formats = []struct {
	Format   Format
	FileName string
}{
	{Plain, "non-gamstop-blocklist.txt"},
	{Hosts, "non-gamstop-blocklist-hosts.txt"},
	{AdGuard, "non-gamstop-blocklist-adguard.txt"},
	{Dnsmasq, "non-gamstop-blocklist-dnsmasq.txt"},
	{Unbound, "non-gamstop-blocklist-unbound.conf"},
	{JSON, "non-gamstop-blocklist.json"},
}

type jsonList struct {
	Updated string   `json:"updated"`
	Count   int      `json:"count"`
	Domains []string `json:"domains"`
}

// Header returns the comment block that opens every text format.
func Header(repoURL string, updated time.Time, count int) string {
	return fmt.Sprintf(`# Non-GamStop Casino Blocklist
#
# Offshore casinos that circumvent GamStop self-exclusion.
# Intended for harm reduction - use alongside standard gambling blocklists.
#
# Repository: %s
# Last updated: %s
# Total domains: %d

`, repoURL, updated.UTC().Format(TimestampLayout), count)
}

// Render produces one format for an already sorted domain list.
func Render(f Format, domains []string, updated time.Time, repoURL string) ([]byte, error) {
	if f == JSON {
		list := jsonList{
			Updated: updated.UTC().Format(TimestampLayout),
			Count:   len(domains),
			Domains: append(make([]string, 0, len(domains)), domains...),
		}
		return json.MarshalIndent(list, "", "  ")
	}

	header := Header(repoURL, updated, len(domains))
	var line func(string) string
	switch f {
	case Plain:
		line = func(d string) string { return d }
	case Hosts:
		line = func(d string) string { return "0.0.0.0 " + d }
	case AdGuard:
		header = strings.ReplaceAll(header, "# ", "! ")
		line = func(d string) string { return "||" + d + "^" }
	case Dnsmasq:
		line = func(d string) string { return "address=/" + d + "/" }
	case Unbound:
		line = func(d string) string { return `local-zone: "` + d + `" always_null` }
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}

	lines := make([]string, len(domains))
	for i, d := range domains {
		lines[i] = line(d)
	}
	return []byte(header + strings.Join(lines, "\n")), nil
}

// WriteAll renders every format from the same domain list and timestamp into dir.
func WriteAll(dir string, domains []string, updated time.Time, repoURL string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	paths := make([]string, 0, len(Formats))
	for _, f := range Formats {
		data, err := Render(f.Format, domains, updated, repoURL)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, f.FileName)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	slog.Info("Generated blocklists", "dir", dir, "files", len(paths), "domains", len(domains))
	return paths, nil
}
