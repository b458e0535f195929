package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"paperwatch/internal/domain"
	"paperwatch/internal/ports"
)

const (
	defaultPageSize         = 100
	defaultPageDelay        = 3 * time.Second
	pageRetryLimit          = 3
	papersPerDayPerCategory = 20
	hardFetchCap            = 10000
	bucketThresholdDays     = 90
	bucketSizeDays          = 90
	userAgent               = "paperwatch/1.0"
)

// atomFeed mirrors the arXiv API Atom response for the structured client.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Links      []atomLink     `xml:"link"`
}

type atomAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// ArxivSource fetches preprint metadata through the arXiv query API. The
// primary strategy is a single structured request; any failure switches to
// the paginated feed strategy with retry, backoff and rate-limit delays.
type ArxivSource struct {
	apiURL    string
	client    *http.Client
	logger    *slog.Logger
	pageSize  int
	pageDelay time.Duration
	sleep     func(time.Duration)
	now       func() time.Time
}

var _ ports.PaperSource = (*ArxivSource)(nil)

// NewArxivSource wires an HTTP client; a nil client gets a 30s timeout.
func NewArxivSource(apiURL string, client *http.Client, logger *slog.Logger) *ArxivSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ArxivSource{
		apiURL:    apiURL,
		client:    client,
		logger:    logger,
		pageSize:  defaultPageSize,
		pageDelay: defaultPageDelay,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

// FetchCeiling inflates the requested maximum so wide time windows still
// leave enough raw records for downstream filtering, capped hard.
func FetchCeiling(maxResults, maxDaysOld, categoriesCount int) int {
	inflated := maxDaysOld * categoriesCount * papersPerDayPerCategory
	if inflated < maxResults {
		inflated = maxResults
	}
	if inflated > hardFetchCap {
		inflated = hardFetchCap
	}
	return inflated
}

func categoryQuery(categories []string) string {
	parts := make([]string, 0, len(categories))
	for _, cat := range categories {
		parts = append(parts, "cat:"+cat)
	}
	return strings.Join(parts, " OR ")
}

// Fetch retrieves up to the inflated ceiling of papers for the category set
// and window. A non-nil error with a non-empty result marks a partial fetch.
func (s *ArxivSource) Fetch(ctx context.Context, categories []string, maxResults, maxDaysOld int) ([]domain.Paper, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories configured")
	}

	ceiling := FetchCeiling(maxResults, maxDaysOld, len(categories))
	query := categoryQuery(categories)
	s.debug("fetching papers", "categories", strings.Join(categories, ","), "ceiling", ceiling, "max_days_old", maxDaysOld)

	papers, err := s.fetchStructured(ctx, query, ceiling)
	if err == nil {
		return dedupeByID(papers), nil
	}
	s.warn("structured client failed, switching to feed strategy", "error", err)

	if maxDaysOld > bucketThresholdDays {
		papers, err = s.fetchBuckets(ctx, query, ceiling, maxDaysOld)
	} else {
		papers, err = s.paginate(ctx, query, ceiling)
	}
	papers = dedupeByID(papers)

	if err != nil && len(papers) == 0 {
		return nil, fmt.Errorf("primary and fallback strategies failed: %w", err)
	}
	return papers, err
}

// fetchStructured is the primary strategy: one structured API query decoded
// from the Atom XML response.
func (s *ArxivSource) fetchStructured(ctx context.Context, query string, limit int) ([]domain.Paper, error) {
	pageURL := s.pageURL(query, 0, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	now := s.now()
	papers := make([]domain.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, NormalizeAtomEntry(entry, now, s.logger))
	}
	s.debug("structured client fetched papers", "count", len(papers))
	return papers, nil
}

// paginate is the feed strategy for one batch: fixed-size pages requested
// strictly in order, each page retried with exponential backoff, a fixed
// delay after every page request whether or not it succeeded. An empty page
// means the source is exhausted; an
// empty first page is reported as a likely misconfiguration. A page that
// exhausts its retries aborts this batch but keeps already-collected pages.
func (s *ArxivSource) paginate(ctx context.Context, query string, limit int) ([]domain.Paper, error) {
	var out []domain.Paper
	for start := 0; start < limit; start += s.pageSize {
		if len(out) >= limit {
			break
		}

		pageSize := s.pageSize
		if remaining := limit - start; remaining < pageSize {
			pageSize = remaining
		}
		pageURL := s.pageURL(query, start, pageSize)

		feed, err := s.fetchPage(ctx, pageURL)
		s.sleep(s.pageDelay)
		if err != nil {
			return out, fmt.Errorf("page at offset %d: %w", start, err)
		}

		if len(feed.Items) == 0 {
			if start == 0 {
				s.warn("first page returned no results, check query parameters", "url", pageURL)
			} else {
				s.debug("no more entries available, stopping pagination", "offset", start)
			}
			break
		}

		now := s.now()
		for _, item := range feed.Items {
			out = append(out, NormalizeFeedItem(item, now, s.logger))
		}
	}
	return out, nil
}

// fetchPage requests one page, retrying up to the retry budget with
// 2^attempt-seconds backoff on transport or server failure.
func (s *ArxivSource) fetchPage(ctx context.Context, pageURL string) (*gofeed.Feed, error) {
	var lastErr error
	for attempt := 1; attempt <= pageRetryLimit; attempt++ {
		feed, err := s.requestPage(ctx, pageURL)
		if err == nil {
			return feed, nil
		}
		lastErr = err
		if attempt < pageRetryLimit {
			wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			s.warn("page request failed, retrying",
				"attempt", attempt, "of", pageRetryLimit, "wait", wait.String(), "error", err)
			s.sleep(wait)
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", pageRetryLimit, lastErr)
}

func (s *ArxivSource) requestPage(ctx context.Context, pageURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// fetchBuckets splits a wide window into fixed-size day buckets, most recent
// first, each with its own paginated sub-fetch restricted by a submitted-date
// range. A failing bucket logs and continues; the fetch stops early once the
// aggregate reaches the ceiling.
func (s *ArxivSource) fetchBuckets(ctx context.Context, query string, limit, maxDaysOld int) ([]domain.Paper, error) {
	numBuckets := (maxDaysOld + bucketSizeDays - 1) / bucketSizeDays
	perBucket := limit / numBuckets
	if perBucket < defaultPageSize {
		perBucket = defaultPageSize
	}
	s.debug("using bucketed fetch", "buckets", numBuckets, "per_bucket", perBucket)

	now := s.now()
	var all []domain.Paper
	var lastErr error

	for bucket := 0; bucket < numBuckets; bucket++ {
		endDate := now.AddDate(0, 0, -bucket*bucketSizeDays)
		startDays := (bucket + 1) * bucketSizeDays
		if startDays > maxDaysOld {
			startDays = maxDaysOld
		}
		startDate := now.AddDate(0, 0, -startDays)

		rangeQuery := fmt.Sprintf("%s AND submittedDate:[%s0000 TO %s2359]",
			query, startDate.Format("20060102"), endDate.Format("20060102"))
		s.debug("fetching bucket", "bucket", bucket+1, "of", numBuckets,
			"from", startDate.Format("2006-01-02"), "to", endDate.Format("2006-01-02"))

		papers, err := s.paginate(ctx, rangeQuery, perBucket)
		all = append(all, papers...)
		if err != nil {
			s.warn("bucket fetch failed, continuing with next bucket", "bucket", bucket+1, "error", err)
			lastErr = err
		}

		if len(all) >= limit {
			s.debug("reached fetch ceiling, stopping bucketed fetch", "count", len(all))
			break
		}
	}

	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return all, nil
}

func (s *ArxivSource) pageURL(query string, start, maxResults int) string {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(maxResults))
	return s.apiURL + "?" + params.Encode()
}

func dedupeByID(papers []domain.Paper) []domain.Paper {
	seen := map[string]struct{}{}
	out := make([]domain.Paper, 0, len(papers))
	for _, p := range papers {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

func (s *ArxivSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *ArxivSource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
