// Package validation provides centralized input validation for identifiers
// arriving from the producer (entity ids, display names, skill names).
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for identifier strings.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowSpaces  bool
	AllowHyphens bool
	AllowUnders  bool
}

// EntityIDRules returns the rules for entity ids. Entity ids are stable keys
// and end up in file names of exports, so they stay strict.
func EntityIDRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    64,
		AllowSpaces:  false,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// DisplayNameRules returns the rules for display names.
func DisplayNameRules() NameRules {
	return NameRules{
		MinLength:    0,
		MaxLength:    255,
		AllowSpaces:  true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// SkillNameRules returns the rules for skill names. Skill names double as
// metric names in trend queries.
func SkillNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    64,
		AllowSpaces:  false,
		AllowHyphens: false,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required", rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed", rules.MaxLength)
	}

	if strings.TrimSpace(name) != name {
		return fmt.Errorf("name cannot have leading or trailing whitespace")
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d", i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("name cannot contain path separators at position %d", i)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character %q at position %d", r, i)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ':
		return rules.AllowSpaces
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

// =============================================================================
// Domain Shorthands
// =============================================================================

// EntityID validates an entity id.
func EntityID(id string) error {
	if err := ValidateName(id, EntityIDRules()); err != nil {
		return fmt.Errorf("entity id: %w", err)
	}
	return nil
}

// DisplayName validates a display name. Empty is allowed; the entity id
// serves as the fallback label.
func DisplayName(name string) error {
	if name == "" {
		return nil
	}
	if err := ValidateName(name, DisplayNameRules()); err != nil {
		return fmt.Errorf("display name: %w", err)
	}
	return nil
}

// SkillName validates a skill name.
func SkillName(name string) error {
	if err := ValidateName(name, SkillNameRules()); err != nil {
		return fmt.Errorf("skill name: %w", err)
	}
	return nil
}

// Skills validates every key of a skill map.
func Skills[V any](skills map[string]V) error {
	for name := range skills {
		if err := SkillName(name); err != nil {
			return err
		}
	}
	return nil
}
