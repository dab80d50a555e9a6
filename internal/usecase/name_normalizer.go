package usecase

import (
	"fmt"
	"strings"
	"unicode"
)

// defaultLexicon translates common Indonesian product words to English.
// Values are single lowercase tokens and never appear as keys.
var defaultLexicon = map[string]string{
	// Produce
	"wortel": "carrot", "bawang": "onion", "daun": "leaf", "kentang": "potato",
	"tomat": "tomato", "cabai": "chili", "cabe": "chili", "jagung": "corn",
	"kubis": "cabbage", "kol": "cabbage", "bayam": "spinach", "timun": "cucumber",
	"mentimun": "cucumber", "terong": "eggplant", "seledri": "celery", "jahe": "ginger",
	"kunyit": "turmeric", "lada": "pepper", "merica": "pepper", "jamur": "mushroom",
	"jeruk": "orange", "apel": "apple", "pisang": "banana", "nanas": "pineapple",
	"semangka": "watermelon", "mangga": "mango", "kelapa": "coconut", "buncis": "beans",
	"kacang": "nut", "labu": "pumpkin", "lobak": "radish", "sawi": "mustard",
	// Proteins
	"ayam": "chicken", "daging": "beef", "sapi": "beef", "babi": "pork",
	"kambing": "goat", "bebek": "duck", "ikan": "fish", "udang": "shrimp",
	"cumi": "squid", "kepiting": "crab", "telur": "egg", "tahu": "tofu",
	"tempe": "tempeh", "paha": "thigh", "dada": "breast", "sayap": "wing",
	// Pantry
	"beras": "rice", "gula": "sugar", "garam": "salt", "minyak": "oil",
	"susu": "milk", "mentega": "butter", "keju": "cheese", "tepung": "flour",
	"kecap": "soy", "saus": "sauce", "madu": "honey", "teh": "tea", "kopi": "coffee",
	"air": "water",
	// Modifiers
	"manis": "sweet", "pahit": "bitter", "asin": "salty", "pedas": "spicy",
	"merah": "red", "putih": "white", "hitam": "black", "hijau": "green",
	"kuning": "yellow", "ungu": "purple", "coklat": "brown", "laut": "sea",
	"liar": "wild", "besar": "big", "kecil": "small", "sedang": "medium",
	"segar": "fresh", "lokal": "local", "impor": "imported", "organik": "organic",
	"kering": "dried", "beku": "frozen", "muda": "young",
}

// NameNormalizer canonicalizes product names so mixed-language, noisy
// spellings of the same product compare equal.
type NameNormalizer struct {
	lexicon map[string]string
}

// NewNameNormalizer builds a normalizer over the given lexicon.
// Keys and values must be single lowercase tokens and no value may be a key,
// otherwise translation would not be idempotent.
func NewNameNormalizer(lexicon map[string]string) (*NameNormalizer, error) {
	clean := make(map[string]string, len(lexicon))
	for k, v := range lexicon {
		if !isLexiconToken(k) || !isLexiconToken(v) {
			return nil, fmt.Errorf("lexicon entry %q -> %q must be single lowercase tokens", k, v)
		}
		clean[k] = v
	}
	for k, v := range clean {
		if _, chained := clean[v]; chained {
			return nil, fmt.Errorf("lexicon value %q for %q is itself a key", v, k)
		}
	}
	return &NameNormalizer{lexicon: clean}, nil
}

// DefaultNameNormalizer returns a normalizer with the built-in Indonesian-English lexicon
func DefaultNameNormalizer() *NameNormalizer {
	n, err := NewNameNormalizer(defaultLexicon)
	if err != nil {
		panic(err)
	}
	return n
}

func isLexiconToken(s string) bool {
	if s == "" || s != strings.ToLower(s) {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Normalize returns the canonical form of a raw product name.
// Empty or symbol-only input yields "".
func (n *NameNormalizer) Normalize(raw string) string {
	// Step 1: Lower-case
	s := lowerCase(raw)

	// Step 2: Replace symbols and punctuation with spaces
	s = replaceSymbols(s)

	// Step 3: Collapse whitespace
	s = collapseWhitespace(s)
	if s == "" {
		return ""
	}

	// Step 4: Tokenize
	tokens := strings.Split(s, " ")

	// Step 5: Drop tokens repeating the previous one
	tokens = dropAdjacentDuplicates(tokens)

	// Step 6: Translate through the lexicon
	tokens = n.translate(tokens)

	return strings.Join(tokens, " ")
}

// MatchTokens returns the tokens the scorer compares. Translation can make
// neighbours equal ("wortel carrot"), so adjacent duplicates are collapsed again.
func (n *NameNormalizer) MatchTokens(s string) []string {
	normalized := n.Normalize(s)
	if normalized == "" {
		return nil
	}
	return dropAdjacentDuplicates(strings.Split(normalized, " "))
}

// Translate maps a single token through the lexicon
func (n *NameNormalizer) Translate(token string) string {
	if v, ok := n.lexicon[token]; ok {
		return v
	}
	return token
}

func (n *NameNormalizer) translate(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = n.Translate(t)
	}
	return out
}

func lowerCase(s string) string {
	return strings.ToLower(s)
}

func replaceSymbols(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dropAdjacentDuplicates(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i, t := range tokens {
		if i > 0 && t == tokens[i-1] {
			continue
		}
		out = append(out, t)
	}
	return out
}
