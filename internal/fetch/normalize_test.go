package fetch

import (
	"encoding/json"
	"testing"
	"time"

	"paperwatch/internal/domain"
)

func TestParseEntryTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	if got := parseEntryTime("", now, "x", nil); !got.IsZero() {
		t.Fatalf("empty value should yield zero time, got %v", got)
	}

	want := time.Date(2026, time.March, 1, 10, 30, 0, 0, time.UTC)
	if got := parseEntryTime("2026-03-01T10:30:00Z", now, "x", nil); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if got := parseEntryTime("yesterday", now, "x", nil); !got.Equal(now) {
		t.Fatalf("unparseable value should fall back to now, got %v", got)
	}
}

func TestStripMarkup(t *testing.T) {
	t.Parallel()

	got := stripMarkup("<p>We propose a <b>new</b> method.</p>\n  Results   improve.")
	if got != "We propose a new method. Results improve." {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestArxivID(t *testing.T) {
	t.Parallel()

	if got := arxivID("http://arxiv.org/abs/2501.00001v2"); got != "2501.00001v2" {
		t.Fatalf("unexpected id: %s", got)
	}
	if got := arxivID("2501.00001"); got != "2501.00001" {
		t.Fatalf("unexpected id: %s", got)
	}
}

func TestNormalizeAtomEntry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	entry := atomEntry{
		ID:        "http://arxiv.org/abs/2501.00001v1",
		Title:     "A  Title\n  Split Across Lines",
		Summary:   "<p>Abstract body.</p>",
		Published: "2026-03-01T10:00:00Z",
		Authors:   []atomAuthor{{Name: " Alice "}, {Name: "Bob", Affiliation: "Lab"}},
		Categories: []atomCategory{
			{Term: "cs.AI"},
			{Term: ""},
		},
		Links: []atomLink{
			{Href: "http://arxiv.org/pdf/2501.00001v1", Type: "application/pdf"},
		},
	}

	p := NormalizeAtomEntry(entry, now, nil)
	if p.ID != "2501.00001v1" {
		t.Fatalf("unexpected id: %s", p.ID)
	}
	if p.Title != "A Title Split Across Lines" {
		t.Fatalf("unexpected title: %q", p.Title)
	}
	if p.Abstract != "Abstract body." {
		t.Fatalf("unexpected abstract: %q", p.Abstract)
	}
	if len(p.Authors) != 2 || p.Authors[0].Name != "Alice" || p.Authors[1].Affiliation != "Lab" {
		t.Fatalf("unexpected authors: %+v", p.Authors)
	}
	if len(p.Categories) != 1 || p.Categories[0] != "cs.AI" {
		t.Fatalf("unexpected categories: %v", p.Categories)
	}
	if p.PDFURL != "http://arxiv.org/pdf/2501.00001v1" {
		t.Fatalf("unexpected pdf url: %s", p.PDFURL)
	}
	if !p.UpdatedAt.IsZero() {
		t.Fatalf("missing updated timestamp should stay zero, got %v", p.UpdatedAt)
	}
	if p.Source != domain.SourceArxiv {
		t.Fatalf("unexpected source: %s", p.Source)
	}
}

func TestNormalizeNote(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	note := Note{
		ID:    "abc123",
		CDate: time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC).UnixMilli(),
		Content: map[string]json.RawMessage{
			"title":    json.RawMessage(`{"value":"Wrapped Title"}`),
			"abstract": json.RawMessage(`"Plain abstract"`),
			"authors":  json.RawMessage(`{"value":["Alice","Bob"]}`),
			"venueid":  json.RawMessage(`"ICLR.cc/2026/Conference"`),
		},
	}

	p := NormalizeNote(note, "ICLR 2026", now)
	if p.ID != "abc123" {
		t.Fatalf("unexpected id: %s", p.ID)
	}
	if p.Title != "Wrapped Title" {
		t.Fatalf("unexpected title: %q", p.Title)
	}
	if p.Abstract != "Plain abstract" {
		t.Fatalf("unexpected abstract: %q", p.Abstract)
	}
	if len(p.Authors) != 2 || p.Authors[1].Name != "Bob" {
		t.Fatalf("unexpected authors: %+v", p.Authors)
	}
	if p.Venue != "ICLR 2026" {
		t.Fatalf("unexpected venue: %s", p.Venue)
	}
	if p.URL != "https://openreview.net/forum?id=abc123" {
		t.Fatalf("unexpected url: %s", p.URL)
	}
	if !p.UpdatedAt.IsZero() {
		t.Fatalf("absent mdate should stay zero, got %v", p.UpdatedAt)
	}
	if p.Source != domain.SourceOpenReview {
		t.Fatalf("unexpected source: %s", p.Source)
	}
	if p.PublishedAt != time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected published: %v", p.PublishedAt)
	}
}
