package domain

import "time"

// Source identifies the upstream provider a paper came from.
type Source string

const (
	SourceArxiv      Source = "arxiv"
	SourceOpenReview Source = "openreview"
)

// Author is a single paper author; affiliation is frequently absent upstream.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Paper is the canonical entity produced by the normalizer. ID is the sole
// deduplication key and must be stable across fetches of the same record.
type Paper struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract"`
	Authors     []Author  `json:"authors"`
	PublishedAt time.Time `json:"published"`
	UpdatedAt   time.Time `json:"updated,omitempty"`
	Categories  []string  `json:"categories"`
	Source      Source    `json:"source"`
	URL         string    `json:"url"`
	PDFURL      string    `json:"pdf_url,omitempty"`
	Venue       string    `json:"venue,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`

	// Populated by the filter/scorer.
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	Score           *float64 `json:"score,omitempty"`
}

// EffectiveDate returns the newer of the publication and update timestamps.
// A zero UpdatedAt means the source never supplied one.
func (p Paper) EffectiveDate() time.Time {
	if !p.UpdatedAt.IsZero() && p.UpdatedAt.After(p.PublishedAt) {
		return p.UpdatedAt
	}
	return p.PublishedAt
}

// AuthorNames flattens the author list for display.
func (p Paper) AuthorNames() []string {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		names = append(names, a.Name)
	}
	return names
}
