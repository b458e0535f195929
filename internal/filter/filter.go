package filter

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"paperwatch/internal/config"
	"paperwatch/internal/domain"
)

// Evaluation is the per-paper outcome of the three filter predicates.
type Evaluation struct {
	Matches  []string
	IsRecent bool
	InRange  bool
}

// Passes applies the overall filter rule: (no keywords configured OR at
// least one match) AND recent AND in range.
func (e Evaluation) Passes(keywords []string) bool {
	return (len(keywords) == 0 || len(e.Matches) > 0) && e.IsRecent && e.InRange
}

// Evaluate runs keyword, recency and date-range predicates against one paper.
func Evaluate(p domain.Paper, keywords []string, maxDaysOld int, dateRange *config.DateRange, now time.Time) Evaluation {
	return Evaluation{
		Matches:  MatchKeywords(p, keywords),
		IsRecent: IsRecent(p, now, maxDaysOld),
		InRange:  InDateRange(p, dateRange),
	}
}

// MatchKeywords returns the configured keywords whose stemmed phrase occurs
// in the stemmed title+abstract text.
func MatchKeywords(p domain.Paper, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	text := StemText(p.Title + " " + p.Abstract)
	var matches []string
	for _, keyword := range keywords {
		stem := StemText(keyword)
		if stem != "" && strings.Contains(text, stem) {
			matches = append(matches, keyword)
		}
	}
	return matches
}

// AgeDays computes the integer day age of a paper relative to now, using the
// newer of published/updated. Future-dated papers clamp to age 0.
func AgeDays(p domain.Paper, now time.Time) (int, bool) {
	date := p.EffectiveDate()
	if date.IsZero() {
		return 0, false
	}
	days := int(now.Sub(date).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, true
}

// IsRecent passes when the paper's day age is at most maxDaysOld. A paper
// with no usable date fails.
func IsRecent(p domain.Paper, now time.Time, maxDaysOld int) bool {
	days, ok := AgeDays(p, now)
	if !ok {
		return false
	}
	return days <= maxDaysOld
}

// InDateRange checks the optional explicit {year, month} filter against the
// publication date. Both present fields must hold independently; a paper
// without a publication date fails whenever a range is configured.
func InDateRange(p domain.Paper, dateRange *config.DateRange) bool {
	if dateRange == nil || (dateRange.Year == 0 && dateRange.Month == 0) {
		return true
	}
	if p.PublishedAt.IsZero() {
		return false
	}
	if dateRange.Year != 0 && p.PublishedAt.Year() != dateRange.Year {
		return false
	}
	if dateRange.Month != 0 && int(p.PublishedAt.Month()) != dateRange.Month {
		return false
	}
	return true
}

// Apply filters the batch against the interest profile, populates
// MatchedKeywords on the survivors, and orders them by effective date
// descending (stable, so fetch order breaks ties).
func Apply(papers []domain.Paper, cfg config.FilterConfig, now time.Time, logger *slog.Logger) []domain.Paper {
	accepted := make([]domain.Paper, 0, len(papers))
	for _, p := range papers {
		eval := Evaluate(p, cfg.Keywords, cfg.MaxDaysOld, cfg.DateRange, now)
		if logger != nil {
			days, _ := AgeDays(p, now)
			logger.Debug("evaluated paper",
				"id", p.ID, "age_days", days,
				"matches", len(eval.Matches), "recent", eval.IsRecent, "in_range", eval.InRange)
		}
		if !eval.Passes(cfg.Keywords) {
			continue
		}
		p.MatchedKeywords = eval.Matches
		accepted = append(accepted, p)
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].EffectiveDate().After(accepted[j].EffectiveDate())
	})
	return accepted
}
