package ports

import (
	"context"
	"time"

	"paperwatch/internal/domain"
)

// PaperSource pulls fresh papers from the preprint API for a category set
// and time window. A non-nil error alongside a non-empty result signals a
// partial fetch (some pages or buckets failed after others succeeded).
type PaperSource interface {
	Fetch(ctx context.Context, categories []string, maxResults, maxDaysOld int) ([]domain.Paper, error)
}

// VenueSource pulls accepted papers for one review-platform venue.
type VenueSource interface {
	FetchVenue(ctx context.Context, venue, venueID string, limit int) ([]domain.Paper, error)
}

// HistoryStore persists per-channel delivery history. Load degrades to an
// empty history when no state exists or the persisted state is unreadable.
type HistoryStore interface {
	Load(channel string) domain.DeliveryHistory
	Save(channel string, history domain.DeliveryHistory) error
}

// FeedWriter emits the syndication artifact and returns its logical name.
type FeedWriter interface {
	Write(papers []domain.Paper, keywords []string, now time.Time) (string, error)
}

// RunRecorder persists one immutable record per pipeline execution.
type RunRecorder interface {
	SaveRun(record domain.RunRecord) error
}

// RunArchiver mirrors run records into long-term storage.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, record domain.RunRecord) error
}

// EmailNotifier delivers digests and failure alerts to the subscriber mailbox.
type EmailNotifier interface {
	SendFeedDigest(ctx context.Context, papers []domain.Paper) error
	SendVenueDigest(ctx context.Context, venue string, papers []domain.Paper) error
	SendErrorAlert(ctx context.Context, stage, detail string) error
}

// WorkspaceSink pushes delivered papers into the workspace database.
type WorkspaceSink interface {
	SyncPapers(ctx context.Context, papers []domain.Paper) (int, error)
}

// Analyzer runs the downstream heavy-analysis stage on a prioritized subset.
type Analyzer interface {
	AnalyzeBatch(ctx context.Context, papers []domain.Paper) (domain.AnalysisReport, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
