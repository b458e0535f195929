package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperwatch/internal/domain"
)

func scoredPaper(id string, ageDays int, keywords ...string) domain.Paper {
	return domain.Paper{
		ID:              id,
		Title:           "Plain title",
		Abstract:        "Plain abstract.",
		PublishedAt:     testNow.AddDate(0, 0, -ageDays),
		MatchedKeywords: keywords,
	}
}

func TestScoreNeutralWithoutDate(t *testing.T) {
	t.Parallel()

	p := domain.Paper{ID: "undated", Title: "No dates at all"}
	assert.Equal(t, 0.5, Score(p, SelectionOptions{}, testNow))
}

func TestScoreRecencyBands(t *testing.T) {
	t.Parallel()

	opts := SelectionOptions{}

	// Base 0.3 plus the banded recency bonus only.
	assert.InDelta(t, 0.5, Score(scoredPaper("day", 1), opts, testNow), 1e-9)
	assert.InDelta(t, 0.45, Score(scoredPaper("week", 7), opts, testNow), 1e-9)
	assert.InDelta(t, 0.4, Score(scoredPaper("month", 30), opts, testNow), 1e-9)
	assert.InDelta(t, 0.3, Score(scoredPaper("older", 60), opts, testNow), 1e-9)
}

func TestScoreKeywordTerms(t *testing.T) {
	t.Parallel()

	opts := SelectionOptions{HighValueKeywords: []string{"agents"}}

	plain := Score(scoredPaper("one", 60, "transformers"), opts, testNow)
	assert.InDelta(t, 0.4, plain, 1e-9)

	high := Score(scoredPaper("hv", 60, "agents"), opts, testNow)
	assert.InDelta(t, 0.45, high, 1e-9)

	// The keyword contribution caps regardless of how many match.
	capped := Score(scoredPaper("many", 60, "a", "b", "c", "d", "e"), opts, testNow)
	assert.InDelta(t, 0.6, capped, 1e-9)
}

func TestScoreAuthorAndAbstractBonuses(t *testing.T) {
	t.Parallel()

	p := scoredPaper("rich", 60)
	p.Authors = []domain.Author{{Name: "A"}, {Name: "B"}, {Name: "C"}}
	p.Abstract = strings.Repeat("x", 500)

	assert.InDelta(t, 0.4, Score(p, SelectionOptions{}, testNow), 1e-9)
}

func TestScoreIndicatorTermsCapped(t *testing.T) {
	t.Parallel()

	p := scoredPaper("sig", 60)
	p.Abstract = "A novel state-of-the-art benchmark that outperforms prior work on every dataset, fully open-source."

	score := Score(p, SelectionOptions{}, testNow)
	assert.InDelta(t, 0.4, score, 1e-9)
}

func TestScoreClampedToOne(t *testing.T) {
	t.Parallel()

	p := scoredPaper("max", 0, "agents", "transformers", "llm")
	p.Authors = []domain.Author{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}}
	p.Abstract = strings.Repeat("novel state-of-the-art benchmark dataset outperform open-source sota ", 20)

	opts := SelectionOptions{HighValueKeywords: []string{"agents", "transformers", "llm"}}
	score := Score(p, opts, testNow)
	assert.LessOrEqual(t, score, 1.0)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestSelectForAnalysisThresholdAndCap(t *testing.T) {
	t.Parallel()

	opts := SelectionOptions{MinScore: 0.45, MaxBatch: 2}

	papers := []domain.Paper{
		scoredPaper("low", 60),
		scoredPaper("mid", 7),
		scoredPaper("high", 1),
		scoredPaper("high-kw", 1, "transformers"),
	}

	selected := SelectForAnalysis(papers, opts, testNow)
	require.Len(t, selected, 2)
	assert.Equal(t, "high-kw", selected[0].ID)
	assert.Equal(t, "high", selected[1].ID)
	require.NotNil(t, selected[0].Score)
	assert.InDelta(t, 0.6, *selected[0].Score, 1e-9)
}

func TestSelectForAnalysisNeutralPassesDefaultThreshold(t *testing.T) {
	t.Parallel()

	undated := domain.Paper{ID: "undated", Title: "No dates"}
	selected := SelectForAnalysis([]domain.Paper{undated}, SelectionOptions{MinScore: 0.5, MaxBatch: 10}, testNow)
	require.Len(t, selected, 1)
	assert.Equal(t, 0.5, *selected[0].Score)
}
