package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const catalogueYAML = `
personas:
  - id: coach
    title: Sprint coach
    instruction: |
      You are a terse sprint coach.
    opening_line: Ready?
    voice_id: en_male
  - id: mentor
    name: Mentor
    instruction: Be direct.
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	if err := os.WriteFile(path, []byte(catalogueYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	items, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile err: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 personas, got %d", len(items))
	}
	if items[0].Name != "coach" || items[0].VoiceID != "en_male" || items[0].OpeningLine != "Ready?" {
		t.Fatalf("unexpected first persona: %+v", items[0])
	}
	if !strings.HasPrefix(items[0].Instruction, "You are a terse sprint coach.") {
		t.Fatalf("unexpected instruction: %q", items[0].Instruction)
	}

	store := NewMemoryStore(items)
	if p, ok := store.Resolve(""); !ok || p.ID != DefaultID {
		t.Fatalf("expected mentor as default, got %+v", p)
	}
}

func TestParseRejectsInvalidCatalogues(t *testing.T) {
	cases := map[string]string{
		"empty":          "personas: []",
		"missing id":     "personas:\n  - instruction: x",
		"no instruction": "personas:\n  - id: a",
		"duplicate":      "personas:\n  - id: a\n    instruction: x\n  - id: a\n    instruction: y",
		"not yaml":       "personas: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
