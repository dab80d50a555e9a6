package usecase

import (
	"fmt"
	"strings"
)

// ModifierClass is the role a token plays in a product name
type ModifierClass int

const (
	ModifierNeutral ModifierClass = iota
	// ModifierExclusive changes product identity (sweet potato is not potato)
	ModifierExclusive
	// ModifierDescriptive qualifies without changing identity (big carrot is carrot)
	ModifierDescriptive
)

func (c ModifierClass) String() string {
	switch c {
	case ModifierExclusive:
		return "exclusive"
	case ModifierDescriptive:
		return "descriptive"
	default:
		return "neutral"
	}
}

// DefaultModifierVersion identifies the built-in dictionary
const DefaultModifierVersion = "2024.1"

var defaultExclusiveModifiers = []string{
	"sweet", "wild", "sea", "water", "bitter", "salty", "spicy",
	"black", "white", "red", "green", "yellow", "purple", "brown",
	"baby", "young", "dried", "frozen", "smoked",
}

var defaultDescriptiveModifiers = []string{
	"big", "large", "small", "medium", "mini", "jumbo",
	"fresh", "premium", "local", "imported", "grade", "super",
	"organic", "quality", "select", "best", "new",
}

// ModifierDictionary is a read-only, versioned set of exclusive and descriptive modifiers
type ModifierDictionary struct {
	version     string
	exclusive   map[string]struct{}
	descriptive map[string]struct{}
}

// NewModifierDictionary builds a dictionary and rejects a word listed in both sets
func NewModifierDictionary(version string, exclusive, descriptive []string) (*ModifierDictionary, error) {
	d := &ModifierDictionary{
		version:     version,
		exclusive:   toSet(exclusive),
		descriptive: toSet(descriptive),
	}
	for w := range d.exclusive {
		if _, both := d.descriptive[w]; both {
			return nil, fmt.Errorf("modifier %q is both exclusive and descriptive", w)
		}
	}
	return d, nil
}

// DefaultModifierDictionary returns the built-in dictionary
func DefaultModifierDictionary() *ModifierDictionary {
	d, err := NewModifierDictionary(DefaultModifierVersion, defaultExclusiveModifiers, defaultDescriptiveModifiers)
	if err != nil {
		panic(err)
	}
	return d
}

// Version returns the dictionary version
func (d *ModifierDictionary) Version() string {
	return d.version
}

// Classify looks a token up, exclusive set first
func (d *ModifierDictionary) Classify(token string) ModifierClass {
	token = strings.ToLower(token)
	if _, ok := d.exclusive[token]; ok {
		return ModifierExclusive
	}
	if _, ok := d.descriptive[token]; ok {
		return ModifierDescriptive
	}
	return ModifierNeutral
}

// exclusiveSet collects the exclusive modifiers present in tokens
func (d *ModifierDictionary) exclusiveSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range tokens {
		if d.Classify(t) == ModifierExclusive {
			out[t] = struct{}{}
		}
	}
	return out
}

func toSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}
