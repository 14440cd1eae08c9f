package validation

import "testing"

func TestEntityID(t *testing.T) {
	valid := []string{"player-1", "abc", "uuid_0af3", "P1"}
	for _, id := range valid {
		if err := EntityID(id); err != nil {
			t.Errorf("EntityID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{
		"",
		" padded ",
		"has space",
		"slash/inside",
		"back\\slash",
		"ctrl\x01char",
		string(make([]byte, 65)),
	}
	for _, id := range invalid {
		if err := EntityID(id); err == nil {
			t.Errorf("EntityID(%q) = nil, want error", id)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if err := DisplayName(""); err != nil {
		t.Errorf("empty display name should be allowed: %v", err)
	}
	if err := DisplayName("Player One"); err != nil {
		t.Errorf("DisplayName with space = %v, want nil", err)
	}
	if err := DisplayName("bad/name"); err == nil {
		t.Error("expected error for path separator")
	}
}

func TestSkillName(t *testing.T) {
	if err := SkillName("MINING"); err != nil {
		t.Errorf("SkillName(MINING) = %v", err)
	}
	if err := SkillName("her_balism"); err != nil {
		t.Errorf("SkillName with underscore = %v", err)
	}
	if err := SkillName("no spaces"); err == nil {
		t.Error("expected error for space in skill name")
	}
	if err := SkillName(""); err == nil {
		t.Error("expected error for empty skill name")
	}
}

func TestSkills(t *testing.T) {
	if err := Skills(map[string]int{"MINING": 1, "FISHING": 2}); err != nil {
		t.Errorf("Skills = %v", err)
	}
	if err := Skills(map[string]int{"bad name": 1}); err == nil {
		t.Error("expected error for invalid key")
	}
}
