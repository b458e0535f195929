package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func noteJSON(id string) string {
	return fmt.Sprintf(`{"id":%q,"cdate":1767999600000,"content":{"title":{"value":"Note %s"}}}`, id, id)
}

func TestFetchVenuePaginatesByOffset(t *testing.T) {
	t.Parallel()

	var offsets []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notes" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("content.venueid"); got != "ICLR.cc/2026/Conference" {
			t.Errorf("unexpected venueid: %s", got)
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		offsets = append(offsets, offset)

		var notes string
		switch offset {
		case 0:
			notes = noteJSON("n1") + "," + noteJSON("n2")
		case 2:
			notes = noteJSON("n3")
		}
		_, _ = fmt.Fprintf(w, `{"notes":[%s]}`, notes)
	}))
	defer server.Close()

	s := NewOpenReviewSource(server.URL, "", "", server.Client(), nil)
	s.pageSize = 2

	papers, err := s.FetchVenue(context.Background(), "ICLR 2026", "ICLR.cc/2026/Conference", 10)
	if err != nil {
		t.Fatalf("FetchVenue error: %v", err)
	}

	if len(papers) != 3 {
		t.Fatalf("expected 3 papers, got %d", len(papers))
	}
	if papers[0].Title != "Note n1" {
		t.Fatalf("unexpected title: %s", papers[0].Title)
	}
	if papers[0].Venue != "ICLR 2026" {
		t.Fatalf("unexpected venue: %s", papers[0].Venue)
	}
	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 2 {
		t.Fatalf("unexpected offsets: %v", offsets)
	}
}

func TestFetchVenueRespectsLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		notes := make([]string, 0, limit)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		for i := 0; i < limit; i++ {
			notes = append(notes, noteJSON(fmt.Sprintf("n%d", offset+i)))
		}
		_, _ = fmt.Fprintf(w, `{"notes":[%s]}`, strings.Join(notes, ","))
	}))
	defer server.Close()

	s := NewOpenReviewSource(server.URL, "", "", server.Client(), nil)
	s.pageSize = 2

	papers, err := s.FetchVenue(context.Background(), "ICLR 2026", "ICLR.cc/2026/Conference", 3)
	if err != nil {
		t.Fatalf("FetchVenue error: %v", err)
	}
	if len(papers) != 3 {
		t.Fatalf("expected fetch capped at 3 papers, got %d", len(papers))
	}
}

func TestFetchVenueAuthenticates(t *testing.T) {
	t.Parallel()

	var sawAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			var creds map[string]string
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds["id"] != "user@example.com" {
				t.Errorf("unexpected login id: %s", creds["id"])
			}
			_, _ = w.Write([]byte(`{"token":"tok-1"}`))
		case "/notes":
			sawAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"notes":[]}`))
		}
	}))
	defer server.Close()

	s := NewOpenReviewSource(server.URL, "user@example.com", "secret", server.Client(), nil)

	if _, err := s.FetchVenue(context.Background(), "ICLR 2026", "ICLR.cc/2026/Conference", 10); err != nil {
		t.Fatalf("FetchVenue error: %v", err)
	}
	if sawAuth != "Bearer tok-1" {
		t.Fatalf("expected bearer token on notes request, got %q", sawAuth)
	}
}

func TestFetchVenueContinuesWhenLoginFails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.Error(w, "bad credentials", http.StatusUnauthorized)
		case "/notes":
			_, _ = fmt.Fprintf(w, `{"notes":[%s]}`, noteJSON("n1"))
		}
	}))
	defer server.Close()

	s := NewOpenReviewSource(server.URL, "user@example.com", "wrong", server.Client(), nil)

	papers, err := s.FetchVenue(context.Background(), "ICLR 2026", "ICLR.cc/2026/Conference", 10)
	if err != nil {
		t.Fatalf("FetchVenue error: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("expected unauthenticated fetch to proceed, got %d papers", len(papers))
	}
}

func TestFetchVenueRequiresVenueID(t *testing.T) {
	t.Parallel()

	s := NewOpenReviewSource("http://example.invalid", "", "", nil, nil)
	if _, err := s.FetchVenue(context.Background(), "ICLR 2026", "", 10); err == nil {
		t.Fatal("expected error for missing venue id")
	}
}

func TestNoteContentDecoding(t *testing.T) {
	t.Parallel()

	note := Note{Content: map[string]json.RawMessage{
		"plain":   json.RawMessage(`"value"`),
		"wrapped": json.RawMessage(`{"value":"inner"}`),
		"list":    json.RawMessage(`["a","b"]`),
		"wlist":   json.RawMessage(`{"value":["c"]}`),
	}}

	if got := note.ContentString("plain"); got != "value" {
		t.Fatalf("unexpected plain value: %s", got)
	}
	if got := note.ContentString("wrapped"); got != "inner" {
		t.Fatalf("unexpected wrapped value: %s", got)
	}
	if got := note.ContentString("missing"); got != "" {
		t.Fatalf("missing key should yield empty string, got %s", got)
	}
	if got := note.ContentStrings("list"); len(got) != 2 || got[0] != "a" {
		t.Fatalf("unexpected list: %v", got)
	}
	if got := note.ContentStrings("wlist"); len(got) != 1 || got[0] != "c" {
		t.Fatalf("unexpected wrapped list: %v", got)
	}
}
