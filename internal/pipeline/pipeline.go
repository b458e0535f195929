package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paperwatch/internal/config"
	"paperwatch/internal/domain"
	"paperwatch/internal/filter"
	"paperwatch/internal/ports"
)

const (
	// FeedChannel is the delivery-history channel of the main feed pipeline.
	FeedChannel = "feed-subscription"
	// VenueChannel is the delivery-history channel of the venue pipeline.
	VenueChannel = "venue-subscription"

	fetchAttempts   = 3
	fetchRetryDelay = 60 * time.Second
)

// Deps are the ports the orchestrator drives. Optional sinks (Email,
// Workspace, Archive, Analyzer) may be nil and are skipped.
type Deps struct {
	Source    ports.PaperSource
	Venues    ports.VenueSource
	History   ports.HistoryStore
	Feed      ports.FeedWriter
	Runs      ports.RunRecorder
	Archive   ports.RunArchiver
	Email     ports.EmailNotifier
	Workspace ports.WorkspaceSink
	Analyzer  ports.Analyzer
}

// Pipeline executes the fetch, filter, dedupe and deliver stages and always
// returns a structured result instead of panicking or half-reporting.
type Pipeline struct {
	cfg    config.Config
	deps   Deps
	logger *slog.Logger
	sleep  func(time.Duration)
	now    func() time.Time
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// Run executes the feed-subscription pipeline once.
func (p *Pipeline) Run(ctx context.Context) domain.RunResult {
	started := p.now()
	result := domain.RunResult{}

	if err := p.cfg.Filter.Validate(); err != nil {
		return p.fail(result, started, fmt.Sprintf("invalid filter configuration: %v", err))
	}

	papers, err := p.fetchWithRetry(ctx)
	if err != nil {
		if len(papers) == 0 {
			return p.fail(result, started, fmt.Sprintf("fetch failed: %v", err))
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("partial fetch: %v", err))
		p.warn("continuing with partial fetch", "count", len(papers), "error", err)
	}
	p.info("fetch complete", "count", len(papers))

	now := p.now()
	matched := filter.Apply(papers, p.cfg.Filter, now, p.logger)
	p.info("filter complete", "matched", len(matched), "of", len(papers))

	history := p.deps.History.Load(FeedChannel)
	fresh := history.FilterNew(matched, "")
	if len(fresh) == 0 {
		result.Success = true
		result.Message = "no new papers to deliver"
		result.Elapsed = p.now().Sub(started)
		p.info("nothing new to deliver", "matched", len(matched))
		return result
	}

	artifact, err := p.deps.Feed.Write(fresh, p.cfg.Filter.Keywords, now)
	if err != nil {
		return p.fail(result, started, fmt.Sprintf("feed emission failed: %v", err))
	}
	result.ArtifactName = artifact
	result.PapersCount = len(fresh)

	history.RecordDelivered(fresh, "", now)
	if err := p.deps.History.Save(FeedChannel, history); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("history not persisted: %v", err))
		p.warn("history save failed, duplicates possible next run", "error", err)
	}

	record := p.buildRecord(FeedChannel, fresh, artifact, now)
	result.HistoryID = record.ID
	if p.deps.Runs != nil {
		if err := p.deps.Runs.SaveRun(record); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("run record not saved: %v", err))
			p.warn("run record save failed", "error", err)
		}
	}
	if p.deps.Archive != nil {
		if err := p.deps.Archive.ArchiveRun(ctx, record); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("run not archived: %v", err))
			p.warn("run archive failed", "error", err)
		}
	}

	if p.cfg.Email.Enabled && p.deps.Email != nil {
		if err := p.deps.Email.SendFeedDigest(ctx, fresh); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("email digest failed: %v", err))
			p.warn("email digest failed", "error", err)
		}
	}

	if p.cfg.Analysis.Enabled && p.deps.Analyzer != nil {
		report := p.analyze(ctx, fresh)
		result.Analysis = report
	}

	result.Success = true
	result.Message = fmt.Sprintf("delivered %d new papers", len(fresh))
	result.Elapsed = p.now().Sub(started)
	p.info("run complete", "delivered", len(fresh), "artifact", artifact, "elapsed", result.Elapsed.String())
	return result
}

// fetchWithRetry retries whole-fetch failures a few times with a fixed delay.
// A partial result is returned immediately with its error so the caller can
// degrade instead of refetching everything.
func (p *Pipeline) fetchWithRetry(ctx context.Context) ([]domain.Paper, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		papers, err := p.deps.Source.Fetch(ctx, p.cfg.Filter.Categories, p.cfg.Filter.MaxResults, p.cfg.Filter.MaxDaysOld)
		if err == nil || len(papers) > 0 {
			return papers, err
		}
		lastErr = err
		if attempt < fetchAttempts {
			p.warn("fetch failed, retrying", "attempt", attempt, "of", fetchAttempts, "error", err)
			p.sleep(fetchRetryDelay)
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", fetchAttempts, lastErr)
}

// RunVenues executes the venue-subscription pipeline once. Venues are
// isolated: one venue failing never blocks the others, and its outcome is
// reported per venue.
func (p *Pipeline) RunVenues(ctx context.Context) domain.RunResult {
	started := p.now()
	result := domain.RunResult{PerSource: map[string]domain.SourceOutcome{}}

	if !p.cfg.Venues.Enabled || len(p.cfg.Venues.List) == 0 {
		result.Success = true
		result.Message = "venue channel disabled"
		result.Elapsed = p.now().Sub(started)
		return result
	}

	history := p.deps.History.Load(VenueChannel)
	now := p.now()
	delivered := 0
	failures := 0
	var allFresh []domain.Paper

	for _, venue := range p.cfg.Venues.List {
		outcome := domain.SourceOutcome{}

		papers, err := p.deps.Venues.FetchVenue(ctx, venue.Name, venue.VenueID, p.cfg.Venues.FetchLimit)
		if err != nil {
			outcome.Error = err.Error()
			result.PerSource[venue.Name] = outcome
			failures++
			p.warn("venue fetch failed, skipping venue", "venue", venue.Name, "error", err)
			continue
		}
		outcome.Success = true
		outcome.PapersCount = len(papers)
		result.PerSource[venue.Name] = outcome

		matched := p.matchVenuePapers(papers, venue.Keywords)
		fresh := history.FilterNew(matched, venue.Name)

		if len(fresh) == 0 {
			p.info("no new venue papers", "venue", venue.Name, "fetched", len(papers))
			continue
		}

		// The digest is this channel's emit: history mutates only after it
		// went out, so a failed send leaves the batch eligible next run.
		if p.cfg.Email.Enabled && p.deps.Email != nil {
			if err := p.deps.Email.SendVenueDigest(ctx, venue.Name, fresh); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("venue %s: email digest failed: %v", venue.Name, err))
				p.warn("venue digest failed, batch held for next run", "venue", venue.Name, "error", err)
				continue
			}
		}

		history.RecordDelivered(fresh, venue.Name, now)
		outcome.NewPapers = len(fresh)
		result.PerSource[venue.Name] = outcome
		delivered += len(fresh)
		allFresh = append(allFresh, fresh...)
		p.info("venue delivered", "venue", venue.Name, "new", len(fresh))
	}

	if delivered > 0 {
		if err := p.deps.History.Save(VenueChannel, history); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("history not persisted: %v", err))
			p.warn("history save failed, duplicates possible next run", "error", err)
		}

		record := p.buildRecord(VenueChannel, allFresh, "", now)
		result.HistoryID = record.ID
		if p.deps.Runs != nil {
			if err := p.deps.Runs.SaveRun(record); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("run record not saved: %v", err))
			}
		}
		if p.deps.Archive != nil {
			if err := p.deps.Archive.ArchiveRun(ctx, record); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("run not archived: %v", err))
			}
		}

		if p.cfg.Notion.Enabled && p.deps.Workspace != nil {
			synced, err := p.deps.Workspace.SyncPapers(ctx, allFresh)
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("workspace sync incomplete: %v", err))
				p.warn("workspace sync incomplete", "synced", synced, "error", err)
			} else {
				p.info("workspace sync complete", "synced", synced)
			}
		}
	}

	result.PapersCount = delivered
	result.Success = failures < len(p.cfg.Venues.List)
	switch {
	case failures == 0:
		result.Message = fmt.Sprintf("delivered %d new venue papers", delivered)
	case result.Success:
		result.Message = fmt.Sprintf("delivered %d new venue papers, %d venues failed", delivered, failures)
	default:
		result.Message = "all venues failed"
	}
	result.Elapsed = p.now().Sub(started)
	return result
}

// matchVenuePapers keeps papers matching the venue keyword set. Venue papers
// skip the recency predicate: acceptance lists are published in batches long
// after submission dates. An empty keyword set keeps everything.
func (p *Pipeline) matchVenuePapers(papers []domain.Paper, keywords []string) []domain.Paper {
	if len(keywords) == 0 {
		return papers
	}
	matched := make([]domain.Paper, 0, len(papers))
	for _, paper := range papers {
		if hits := filter.MatchKeywords(paper, keywords); len(hits) > 0 {
			paper.MatchedKeywords = hits
			matched = append(matched, paper)
		}
	}
	return matched
}

// analyze runs the deep-analysis stage on the prioritized subset of an
// already-delivered batch. Analysis failures never undo the delivery.
func (p *Pipeline) analyze(ctx context.Context, delivered []domain.Paper) *domain.AnalysisReport {
	opts := filter.SelectionOptions{
		HighValueKeywords: p.cfg.Analysis.HighValueKeywords,
		IndicatorTerms:    p.cfg.Analysis.IndicatorTerms,
		MinScore:          p.cfg.Analysis.MinScore,
		MaxBatch:          p.cfg.Analysis.MaxBatch,
	}
	selected := filter.SelectForAnalysis(delivered, opts, p.now())
	if len(selected) == 0 {
		p.info("no papers met the analysis threshold", "delivered", len(delivered))
		return &domain.AnalysisReport{}
	}

	report, err := p.deps.Analyzer.AnalyzeBatch(ctx, selected)
	if err != nil {
		p.warn("analysis stage failed", "error", err)
		report.Failures = len(selected)
	}
	p.info("analysis complete", "analyzed", report.AnalyzedCount, "failures", report.Failures)
	return &report
}

func (p *Pipeline) buildRecord(channel string, papers []domain.Paper, artifact string, now time.Time) domain.RunRecord {
	summaries := make([]domain.PaperSummary, 0, len(papers))
	for _, paper := range papers {
		summaries = append(summaries, domain.PaperSummary{
			ID:              paper.ID,
			Title:           paper.Title,
			PublishedAt:     paper.PublishedAt,
			Categories:      paper.Categories,
			MatchedKeywords: paper.MatchedKeywords,
		})
	}
	return domain.RunRecord{
		ID:        uuid.NewString(),
		Timestamp: now,
		Channel:   channel,
		Filter: domain.FilterSnapshot{
			Keywords:   p.cfg.Filter.Keywords,
			Categories: p.cfg.Filter.Categories,
			MaxDaysOld: p.cfg.Filter.MaxDaysOld,
		},
		PapersCount:  len(papers),
		Papers:       summaries,
		ArtifactName: artifact,
	}
}

func (p *Pipeline) fail(result domain.RunResult, started time.Time, message string) domain.RunResult {
	result.Success = false
	result.Message = message
	result.Elapsed = p.now().Sub(started)
	if p.logger != nil {
		p.logger.Error("run failed", "message", message)
	}
	return result
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
