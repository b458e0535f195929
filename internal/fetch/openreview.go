package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"paperwatch/internal/domain"
	"paperwatch/internal/ports"
)

// Note is one review-platform submission record. Content fields arrive
// either as plain values or wrapped in {"value": ...} depending on the API
// version, so they are kept raw and decoded tolerantly.
type Note struct {
	ID      string                     `json:"id"`
	CDate   int64                      `json:"cdate"`
	MDate   int64                      `json:"mdate"`
	Content map[string]json.RawMessage `json:"content"`
}

// ContentString decodes a scalar content field in either representation.
func (n Note) ContentString(key string) string {
	raw, ok := n.Content[key]
	if !ok {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Value
	}
	return ""
}

// ContentStrings decodes a list content field in either representation.
func (n Note) ContentStrings(key string) []string {
	raw, ok := n.Content[key]
	if !ok {
		return nil
	}
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var wrapped struct {
		Value []string `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Value
	}
	return nil
}

// OpenReviewSource fetches venue submissions from the review platform.
// Credentials are optional; without them requests run unauthenticated.
type OpenReviewSource struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	logger   *slog.Logger
	token    string
	pageSize int
	now      func() time.Time
}

var _ ports.VenueSource = (*OpenReviewSource)(nil)

// NewOpenReviewSource wires an HTTP client; a nil client gets a 60s timeout.
func NewOpenReviewSource(baseURL, username, password string, client *http.Client, logger *slog.Logger) *OpenReviewSource {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenReviewSource{
		baseURL:  baseURL,
		username: username,
		password: password,
		client:   client,
		logger:   logger,
		pageSize: 1000,
		now:      time.Now,
	}
}

// FetchVenue pages through /notes for the venue id by offset until the
// platform returns a short page or the limit is reached.
func (s *OpenReviewSource) FetchVenue(ctx context.Context, venue, venueID string, limit int) ([]domain.Paper, error) {
	if venueID == "" {
		return nil, fmt.Errorf("venue %s: missing venue id", venue)
	}
	if limit <= 0 {
		limit = s.pageSize
	}

	if s.username != "" && s.token == "" {
		if err := s.login(ctx); err != nil {
			if s.logger != nil {
				s.logger.Warn("login failed, continuing unauthenticated", "error", err)
			}
		}
	}

	var out []domain.Paper
	now := s.now()
	for offset := 0; len(out) < limit; {
		pageLimit := s.pageSize
		if remaining := limit - len(out); remaining < pageLimit {
			pageLimit = remaining
		}

		notes, err := s.fetchNotes(ctx, venueID, pageLimit, offset)
		if err != nil {
			return out, fmt.Errorf("venue %s: %w", venue, err)
		}
		if len(notes) == 0 {
			break
		}

		for _, note := range notes {
			out = append(out, NormalizeNote(note, venue, now))
		}
		offset += len(notes)

		if len(notes) < pageLimit {
			break
		}
	}

	if s.logger != nil {
		s.logger.Debug("venue fetch complete", "venue", venue, "count", len(out))
	}
	return out, nil
}

func (s *OpenReviewSource) fetchNotes(ctx context.Context, venueID string, limit, offset int) ([]Note, error) {
	params := url.Values{}
	params.Set("content.venueid", venueID)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/notes?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request notes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notes endpoint returned %s", resp.Status)
	}

	var payload struct {
		Notes []Note `json:"notes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	return payload.Notes, nil
}

func (s *OpenReviewSource) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"id":       s.username,
		"password": s.password,
	})
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login returned %s", resp.Status)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if payload.Token == "" {
		return fmt.Errorf("login response contained no token")
	}
	s.token = payload.Token
	return nil
}
