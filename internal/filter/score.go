package filter

import (
	"sort"
	"strings"
	"time"

	"paperwatch/internal/domain"
)

const (
	scoreBase         = 0.3
	scoreNeutral      = 0.5
	keywordTerm       = 0.10
	highValueTerm     = 0.15
	keywordTermCap    = 0.3
	multiAuthorBonus  = 0.05
	longAbstractBonus = 0.05
	indicatorTerm     = 0.02
	indicatorCap      = 0.1
	longAbstractRunes = 500
	multiAuthorCount  = 3
)

// defaultIndicatorTerms are domain-signal words used when none are configured.
var defaultIndicatorTerms = []string{
	"state-of-the-art", "sota", "novel", "benchmark", "outperform", "open-source", "dataset",
}

// SelectionOptions tunes the deep-analysis prioritization.
type SelectionOptions struct {
	HighValueKeywords []string
	IndicatorTerms    []string
	MinScore          float64
	MaxBatch          int
}

// Score computes the continuous selection score in [0,1] for one paper. It is
// additive over a fixed base, matched-keyword terms (high-value keywords
// weigh more), a banded recency bonus, a multi-author bonus, an
// abstract-length bonus and a bounded indicator-term bonus, then clamped.
// A paper that cannot be scored (no usable date) gets the neutral default
// instead of being dropped.
func Score(p domain.Paper, opts SelectionOptions, now time.Time) float64 {
	days, ok := AgeDays(p, now)
	if !ok {
		return scoreNeutral
	}

	score := scoreBase

	highValue := map[string]struct{}{}
	for _, kw := range opts.HighValueKeywords {
		highValue[strings.ToLower(kw)] = struct{}{}
	}
	keywordTotal := 0.0
	for _, kw := range p.MatchedKeywords {
		if _, ok := highValue[strings.ToLower(kw)]; ok {
			keywordTotal += highValueTerm
		} else {
			keywordTotal += keywordTerm
		}
	}
	if keywordTotal > keywordTermCap {
		keywordTotal = keywordTermCap
	}
	score += keywordTotal

	switch {
	case days <= 1:
		score += 0.2
	case days <= 7:
		score += 0.15
	case days <= 30:
		score += 0.1
	}

	if len(p.Authors) >= multiAuthorCount {
		score += multiAuthorBonus
	}
	if len([]rune(p.Abstract)) >= longAbstractRunes {
		score += longAbstractBonus
	}

	terms := opts.IndicatorTerms
	if len(terms) == 0 {
		terms = defaultIndicatorTerms
	}
	text := strings.ToLower(p.Title + " " + p.Abstract)
	indicatorTotal := 0.0
	for _, term := range terms {
		if strings.Contains(text, strings.ToLower(term)) {
			indicatorTotal += indicatorTerm
		}
	}
	if indicatorTotal > indicatorCap {
		indicatorTotal = indicatorCap
	}
	score += indicatorTotal

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

// SelectForAnalysis scores all papers, ranks them descending and returns at
// most MaxBatch papers with score >= MinScore, Score populated on each.
func SelectForAnalysis(papers []domain.Paper, opts SelectionOptions, now time.Time) []domain.Paper {
	scored := make([]domain.Paper, 0, len(papers))
	for _, p := range papers {
		s := Score(p, opts, now)
		p.Score = &s
		scored = append(scored, p)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].Score > *scored[j].Score
	})

	selected := make([]domain.Paper, 0, len(scored))
	for _, p := range scored {
		if *p.Score < opts.MinScore {
			continue
		}
		selected = append(selected, p)
		if opts.MaxBatch > 0 && len(selected) >= opts.MaxBatch {
			break
		}
	}
	return selected
}
