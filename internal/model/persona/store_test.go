package persona

import "testing"

func TestResolveEmptyIDUsesDefault(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.Resolve("")
	if !ok {
		t.Fatal("expected default persona")
	}
	if got.ID != DefaultID {
		t.Fatalf("expected %s, got %s", DefaultID, got.ID)
	}
	if got.Instruction == "" {
		t.Fatal("default persona must carry a system instruction")
	}
}

func TestResolveFallsBackToFirstPersona(t *testing.T) {
	store := NewMemoryStore([]Persona{{ID: "only", Instruction: "x"}})

	got, ok := store.Resolve("")
	if !ok || got.ID != "only" {
		t.Fatalf("expected fallback to first persona, got %+v ok=%v", got, ok)
	}
}

func TestResolveUnknownID(t *testing.T) {
	store := NewMemoryStore(Seed())

	if _, ok := store.Resolve("nobody"); ok {
		t.Fatal("expected unknown persona to fail")
	}
}

func TestSeedInstructionsNotEmpty(t *testing.T) {
	for _, p := range Seed() {
		if p.Instruction == "" {
			t.Fatalf("persona %s has empty instruction", p.ID)
		}
	}
}
