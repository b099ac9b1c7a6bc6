package manual

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dancharlton9/gambling-blocklist/packages/domain"
)

const sample = `# Manually curated additions
WinBig.Casino

www.spinland.bet
   # indented comment
not a domain
gamstop.co.uk
sub.gamstop.co.uk
winbig.casino
example.org
`

func TestParse(t *testing.T) {
	got, err := Parse(strings.NewReader(sample), []string{"gamstop.co.uk"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	want := []domain.Domain{"winbig.casino", "spinland.bet", "example.org"}
	if len(got) != len(want) {
		t.Fatalf("Parse = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.txt"), nil)
	if err != nil {
		t.Fatalf("Load error on missing file: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Load on missing file = %v, want empty", got)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manual.txt")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path, []string{"gamstop.co.uk"})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Load = %v, want 3 domains", got)
	}
}
