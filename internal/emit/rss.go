package emit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"paperwatch/internal/config"
	"paperwatch/internal/domain"
	"paperwatch/internal/ports"
)

const keywordAbbrevLimit = 3

// RSSWriter renders the filtered batch as an RSS 2.0 document on disk and
// reports the artifact's base filename.
type RSSWriter struct {
	cfg    config.FeedConfig
	logger *slog.Logger
}

var _ ports.FeedWriter = (*RSSWriter)(nil)

func NewRSSWriter(cfg config.FeedConfig, logger *slog.Logger) *RSSWriter {
	return &RSSWriter{cfg: cfg, logger: logger}
}

// keywordAbbreviation derives a short filename tag from the interest profile:
// the upper-cased first letters of each word of the first few keywords, or
// "ALL" when no keywords are configured.
func keywordAbbreviation(keywords []string) string {
	if len(keywords) == 0 {
		return "ALL"
	}
	if len(keywords) > keywordAbbrevLimit {
		keywords = keywords[:keywordAbbrevLimit]
	}

	var b strings.Builder
	for _, kw := range keywords {
		for _, word := range strings.Fields(kw) {
			r := []rune(word)
			if len(r) > 0 {
				b.WriteString(strings.ToUpper(string(r[0])))
			}
		}
	}
	if b.Len() == 0 {
		return "ALL"
	}
	return b.String()
}

// Write renders the feed into OutputDir and returns the base filename. The
// filename embeds the generation instant and the keyword abbreviation so
// successive runs never clobber each other.
func (w *RSSWriter) Write(papers []domain.Paper, keywords []string, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       w.cfg.Title,
		Description: w.cfg.Description,
		Link:        &feeds.Link{Href: w.cfg.Link},
		Created:     now,
	}

	for _, p := range papers {
		item := &feeds.Item{
			Id:          p.URL,
			Title:       p.Title,
			Link:        &feeds.Link{Href: p.URL},
			Description: itemDescription(p),
			Created:     p.PublishedAt,
			Updated:     p.UpdatedAt,
		}
		if len(p.Authors) > 0 {
			item.Author = &feeds.Author{Name: p.Authors[0].Name}
		}
		if p.PDFURL != "" {
			item.Enclosure = &feeds.Enclosure{Url: p.PDFURL, Type: "application/pdf", Length: "0"}
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("render feed: %w", err)
	}

	if err := os.MkdirAll(w.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.xml", now.Format("20060102_150405"), keywordAbbreviation(keywords))
	path := filepath.Join(w.cfg.OutputDir, name)
	if err := os.WriteFile(path, []byte(rss), 0o644); err != nil {
		return "", fmt.Errorf("write feed: %w", err)
	}

	if w.logger != nil {
		w.logger.Info("feed written", "file", name, "items", len(papers))
	}
	return name, nil
}

func itemDescription(p domain.Paper) string {
	var b strings.Builder
	if len(p.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(p.Categories, ", "))
	}
	if len(p.MatchedKeywords) > 0 {
		fmt.Fprintf(&b, "Matched: %s\n", strings.Join(p.MatchedKeywords, ", "))
	}
	if len(p.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(p.AuthorNames(), ", "))
	}
	b.WriteString(p.Abstract)
	return b.String()
}
