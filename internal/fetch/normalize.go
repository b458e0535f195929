package fetch

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"paperwatch/internal/domain"
)

// arxivTimeLayouts covers the timestamp forms the arXiv API emits.
var arxivTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05Z"}

// parseEntryTime maps a raw timestamp to time.Time. An absent value yields
// the zero time; a value that fails to parse falls back to now so a single
// bad date never aborts normalization of the batch.
func parseEntryTime(value string, now time.Time, id string, logger *slog.Logger) time.Time {
	if strings.TrimSpace(value) == "" {
		return time.Time{}
	}
	for _, layout := range arxivTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if logger != nil {
		logger.Warn("date parsing error, falling back to now", "entry", id, "value", value)
	}
	return now
}

// stripMarkup drops HTML/XML tags from feed summaries and collapses runs of
// whitespace.
func stripMarkup(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// arxivID extracts the stable accession number from a full entry id URL,
// e.g. "http://arxiv.org/abs/2501.00001v2" -> "2501.00001v2".
func arxivID(entryID string) string {
	trimmed := strings.TrimSuffix(entryID, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// NormalizeAtomEntry maps a structured-client entry to the canonical Paper.
func NormalizeAtomEntry(e atomEntry, now time.Time, logger *slog.Logger) domain.Paper {
	id := arxivID(e.ID)

	authors := make([]domain.Author, 0, len(e.Authors))
	for _, a := range e.Authors {
		authors = append(authors, domain.Author{
			Name:        strings.TrimSpace(a.Name),
			Affiliation: strings.TrimSpace(a.Affiliation),
		})
	}

	categories := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		if c.Term != "" {
			categories = append(categories, c.Term)
		}
	}

	url := e.ID
	pdfURL := ""
	for _, link := range e.Links {
		if link.Type == "application/pdf" || link.Title == "pdf" {
			pdfURL = link.Href
		}
	}
	if pdfURL == "" && id != "" {
		pdfURL = fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", id)
	}

	return domain.Paper{
		ID:          id,
		Title:       strings.Join(strings.Fields(e.Title), " "),
		Abstract:    stripMarkup(e.Summary),
		Authors:     authors,
		PublishedAt: parseEntryTime(e.Published, now, id, logger),
		UpdatedAt:   parseEntryTime(e.Updated, now, id, logger),
		Categories:  categories,
		Source:      domain.SourceArxiv,
		URL:         url,
		PDFURL:      pdfURL,
		FetchedAt:   now,
	}
}

// NormalizeFeedItem maps a fallback feed entry to the canonical Paper.
// Missing optional fields (author affiliation, updated timestamp) get
// well-defined defaults instead of failing.
func NormalizeFeedItem(item *gofeed.Item, now time.Time, logger *slog.Logger) domain.Paper {
	entryID := item.GUID
	if entryID == "" {
		entryID = item.Link
	}
	id := arxivID(entryID)

	authors := make([]domain.Author, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a == nil {
			continue
		}
		authors = append(authors, domain.Author{Name: strings.TrimSpace(a.Name)})
	}

	published := time.Time{}
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else {
		published = parseEntryTime(item.Published, now, id, logger)
	}
	updated := time.Time{}
	if item.UpdatedParsed != nil {
		updated = *item.UpdatedParsed
	} else {
		updated = parseEntryTime(item.Updated, now, id, logger)
	}

	url := item.Link
	if url == "" {
		url = entryID
	}

	return domain.Paper{
		ID:          id,
		Title:       strings.Join(strings.Fields(item.Title), " "),
		Abstract:    stripMarkup(item.Description),
		Authors:     authors,
		PublishedAt: published,
		UpdatedAt:   updated,
		Categories:  append([]string(nil), item.Categories...),
		Source:      domain.SourceArxiv,
		URL:         url,
		PDFURL:      fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", id),
		FetchedAt:   now,
	}
}

// NormalizeNote maps a review-platform note to the canonical Paper. The
// platform reports creation/modification instants as epoch milliseconds;
// zero means the field was absent.
func NormalizeNote(n Note, venue string, now time.Time) domain.Paper {
	published := time.Time{}
	if n.CDate > 0 {
		published = time.UnixMilli(n.CDate).UTC()
	}
	updated := time.Time{}
	if n.MDate > 0 {
		updated = time.UnixMilli(n.MDate).UTC()
	}

	authors := make([]domain.Author, 0)
	for _, name := range n.ContentStrings("authors") {
		authors = append(authors, domain.Author{Name: name})
	}

	categories := []string{}
	if venueID := n.ContentString("venueid"); venueID != "" {
		categories = append(categories, venueID)
	}

	return domain.Paper{
		ID:          n.ID,
		Title:       n.ContentString("title"),
		Abstract:    n.ContentString("abstract"),
		Authors:     authors,
		PublishedAt: published,
		UpdatedAt:   updated,
		Categories:  categories,
		Source:      domain.SourceOpenReview,
		URL:         fmt.Sprintf("https://openreview.net/forum?id=%s", n.ID),
		Venue:       venue,
		FetchedAt:   now,
	}
}
