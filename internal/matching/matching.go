// Package matching pairs products of two catalogs by name.
package matching

import (
	"fmt"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

const (
	DefaultFuzzyThreshold = 0.85
	DefaultMinimumMatches = 3
)

type Tier string

const (
	TierExact Tier = "exact"
	TierFuzzy Tier = "fuzzy"
)

type Config struct {
	FuzzyThreshold float64 `mapstructure:"fuzzy-threshold"`
	MinimumMatches int     `mapstructure:"minimum-matches"`
}

// Validate rejects thresholds outside (0, 1] and non-positive minimums.
func (c Config) Validate() error {
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy threshold must be within (0, 1], got %v", c.FuzzyThreshold)
	}
	if c.MinimumMatches <= 0 {
		return fmt.Errorf("minimum matches must be positive, got %d", c.MinimumMatches)
	}
	return nil
}

type Match struct {
	MainProduct      string  `json:"main_product"`
	ExpansionProduct string  `json:"expansion_product"`
	Tier             Tier    `json:"tier"`
	Similarity       float64 `json:"similarity"`
}

type Result struct {
	Matches []Match
	Exact   int
	Fuzzy   int
}

func (r Result) Total() int {
	return r.Exact + r.Fuzzy
}

type Matcher struct {
	threshold float64
}

func New(cfg Config) *Matcher {
	threshold := cfg.FuzzyThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	return &Matcher{threshold: threshold}
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match pairs expansion products with main products. Every product takes part
// in at most one pair. Exact pairs (equal normalized names) are resolved first
// over the whole catalog, then the remaining expansion products are paired
// with their most similar unused main product at or above the threshold. Ties
// go to the earlier main product, so the result only depends on input order.
func (m *Matcher) Match(main, expansion []evidence.Product) Result {
	mainNorm := make([]string, len(main))
	for i, p := range main {
		mainNorm[i] = Normalize(p.Name)
	}

	usedMain := make([]bool, len(main))
	matchedExp := make([]bool, len(expansion))
	pairs := make([]*Match, len(expansion))

	var result Result

	for i, p := range expansion {
		norm := Normalize(p.Name)
		if norm == "" {
			continue
		}

		for j := range main {
			if usedMain[j] || mainNorm[j] != norm {
				continue
			}

			usedMain[j] = true
			matchedExp[i] = true
			pairs[i] = &Match{
				MainProduct:      main[j].Name,
				ExpansionProduct: p.Name,
				Tier:             TierExact,
				Similarity:       1,
			}
			result.Exact++
			break
		}
	}

	for i, p := range expansion {
		if matchedExp[i] || Normalize(p.Name) == "" {
			continue
		}

		best, bestScore := -1, 0.0
		for j := range main {
			if usedMain[j] {
				continue
			}

			score := Similarity(p.Name, main[j].Name)
			if score >= m.threshold && score > bestScore {
				best, bestScore = j, score
			}
		}

		if best == -1 {
			continue
		}

		usedMain[best] = true
		pairs[i] = &Match{
			MainProduct:      main[best].Name,
			ExpansionProduct: p.Name,
			Tier:             TierFuzzy,
			Similarity:       bestScore,
		}
		result.Fuzzy++
	}

	for _, pair := range pairs {
		if pair != nil {
			result.Matches = append(result.Matches, *pair)
		}
	}

	return result
}
