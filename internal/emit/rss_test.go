package emit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperwatch/internal/config"
	"paperwatch/internal/domain"
)

func TestKeywordAbbreviation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ALL", keywordAbbreviation(nil))
	assert.Equal(t, "RL", keywordAbbreviation([]string{"reinforcement learning"}))
	assert.Equal(t, "RLA", keywordAbbreviation([]string{"reinforcement learning", "agents"}))
	// Only the first three keywords contribute.
	assert.Equal(t, "ABGC", keywordAbbreviation([]string{"alpha", "beta", "gamma charlie", "delta"}))
}

func TestWriteProducesFeedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := NewRSSWriter(config.FeedConfig{
		Title:       "Test Feed",
		Description: "Filtered papers",
		Link:        "https://arxiv.org",
		OutputDir:   dir,
	}, nil)

	now := time.Date(2026, time.March, 15, 8, 30, 0, 0, time.UTC)
	papers := []domain.Paper{
		{
			ID:              "2501.00001v1",
			Title:           "Sample Paper",
			Abstract:        "An abstract.",
			URL:             "http://arxiv.org/abs/2501.00001v1",
			PDFURL:          "https://arxiv.org/pdf/2501.00001v1.pdf",
			PublishedAt:     now.AddDate(0, 0, -1),
			Authors:         []domain.Author{{Name: "Alice"}},
			Categories:      []string{"cs.AI"},
			MatchedKeywords: []string{"agents"},
		},
	}

	name, err := writer.Write(papers, []string{"agents"}, now)
	require.NoError(t, err)
	assert.Equal(t, "20260315_083000_A.xml", name)

	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "<title>Test Feed</title>")
	assert.Contains(t, content, "Sample Paper")
	assert.Contains(t, content, "http://arxiv.org/abs/2501.00001v1")
	assert.Contains(t, content, "https://arxiv.org/pdf/2501.00001v1.pdf")
	assert.Contains(t, content, "Matched: agents")
}

func TestWriteEmptyBatchStillEmitsFeed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := NewRSSWriter(config.FeedConfig{Title: "Empty", Link: "https://arxiv.org", OutputDir: dir}, nil)

	now := time.Date(2026, time.March, 15, 8, 30, 0, 0, time.UTC)
	name, err := writer.Write(nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, "20260315_083000_ALL.xml", name)

	_, err = os.Stat(filepath.Join(dir, name))
	assert.NoError(t, err)
}

func TestSuccessiveWritesNeverClobber(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := NewRSSWriter(config.FeedConfig{Title: "T", Link: "https://arxiv.org", OutputDir: dir}, nil)

	first, err := writer.Write(nil, nil, time.Date(2026, time.March, 15, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	second, err := writer.Write(nil, nil, time.Date(2026, time.March, 15, 8, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
