package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// ExactMatchScore is the score of identical normalized names
const ExactMatchScore = 100.0

// SimilarityScorer scores a query name against a candidate name, 0-100.
// It is pure and safe for concurrent use.
type SimilarityScorer struct {
	normalizer *NameNormalizer
	modifiers  *ModifierDictionary
	weights    ScoringWeights
}

// NewSimilarityScorer creates a scorer. Weights are validated so overlap
// scores can never reach the sorted-word tier.
func NewSimilarityScorer(normalizer *NameNormalizer, modifiers *ModifierDictionary, weights ScoringWeights) (*SimilarityScorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &SimilarityScorer{
		normalizer: normalizer,
		modifiers:  modifiers,
		weights:    weights,
	}, nil
}

// DefaultSimilarityScorer returns a scorer with built-in lexicon, dictionary and weights
func DefaultSimilarityScorer() *SimilarityScorer {
	s, err := NewSimilarityScorer(DefaultNameNormalizer(), DefaultModifierDictionary(), DefaultScoringWeights())
	if err != nil {
		panic(err)
	}
	return s
}

// Normalizer exposes the scorer's name normalizer
func (s *SimilarityScorer) Normalizer() *NameNormalizer {
	return s.normalizer
}

// Score compares a query with a candidate name
func (s *SimilarityScorer) Score(query, candidate string) domain.SimilarityResult {
	q := s.normalizer.MatchTokens(query)
	c := s.normalizer.MatchTokens(candidate)
	if len(q) == 0 || len(c) == 0 {
		return rejected(domain.ReasonEmptyInput)
	}

	// Stage 1: exclusive modifiers must agree in both directions
	if !sameSet(s.modifiers.exclusiveSet(q), s.modifiers.exclusiveSet(c)) {
		return rejected(domain.ReasonModifierConflict)
	}

	// Stage 2: exact match
	if strings.Join(q, " ") == strings.Join(c, " ") {
		return domain.SimilarityResult{Score: ExactMatchScore, Tier: domain.TierExact}
	}

	// Stage 3: same words in another order
	if sameMultiset(q, c) {
		return domain.SimilarityResult{Score: SortedWordScore, Tier: domain.TierSortedWord}
	}

	// Stage 4: every core word of the query must appear in the candidate
	if !s.coreWordsPresent(q, c) {
		return rejected(domain.ReasonCoreWordMismatch)
	}

	// Stage 5: weighted overlap
	return domain.SimilarityResult{Score: s.overlapScore(q, c), Tier: domain.TierOverlap}
}

// ScoreProduct scores a query against a catalog product and attaches it to the result
func (s *SimilarityScorer) ScoreProduct(query string, p domain.Product) domain.SimilarityResult {
	res := s.Score(query, p.MatchName())
	product := p
	res.Product = &product
	return res
}

// coreWordsPresent checks each non-descriptive query token against the candidate by
// substring containment in either direction
func (s *SimilarityScorer) coreWordsPresent(q, c []string) bool {
	for _, qt := range q {
		if s.modifiers.Classify(qt) == ModifierDescriptive {
			continue
		}
		if !containsEither(qt, c) {
			return false
		}
	}
	return true
}

func (s *SimilarityScorer) overlapScore(q, c []string) float64 {
	candidateSet := make(map[string]struct{}, len(c))
	for _, t := range c {
		candidateSet[t] = struct{}{}
	}

	matching, exact := 0, 0
	for _, qt := range q {
		if _, ok := candidateSet[qt]; ok {
			exact++
			matching++
			continue
		}
		if containsEither(qt, c) {
			matching++
		}
	}

	w := s.weights
	overlap := float64(matching) / float64(max(len(q), len(c)))
	bonus := float64(exact) / float64(len(q)) * w.ExactBonusWeight
	penalty := math.Max(0, float64(len(c)-len(q))) * w.ExtraWordPenalty

	final := (overlap + bonus - penalty) * w.OverlapScale
	return math.Min(w.OverlapCeiling, math.Max(0, final))
}

func containsEither(token string, others []string) bool {
	for _, o := range others {
		if strings.Contains(o, token) || strings.Contains(token, o) {
			return true
		}
	}
	return false
}

func rejected(reason domain.RejectReason) domain.SimilarityResult {
	return domain.SimilarityResult{Score: 0, Tier: domain.TierRejected, Reason: reason}
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
