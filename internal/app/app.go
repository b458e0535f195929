package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"paperwatch/internal/analyze"
	"paperwatch/internal/config"
	"paperwatch/internal/emit"
	"paperwatch/internal/fetch"
	"paperwatch/internal/history"
	"paperwatch/internal/logging"
	"paperwatch/internal/notify"
	"paperwatch/internal/pipeline"
	"paperwatch/internal/ports"
	"paperwatch/internal/scheduler"
	"paperwatch/internal/storage"
)

// Application wires configuration to adapters and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	sched    ports.Scheduler
	archive  *storage.RunArchive
	alerts   ports.EmailNotifier
}

// New builds a runnable application instance. Optional sinks that are not
// configured stay nil and the orchestrator skips them.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	source := fetch.NewArxivSource(cfg.Arxiv.APIURL, nil, logging.Component(baseLogger, "source.arxiv"))
	venues := fetch.NewOpenReviewSource(cfg.Venues.BaseURL, cfg.Venues.Username, cfg.Venues.Password,
		nil, logging.Component(baseLogger, "source.openreview"))

	store := history.NewStore(cfg.History.Dir, logging.Component(baseLogger, "history"))
	runs := history.NewRunLog(cfg.History.Dir, logging.Component(baseLogger, "runlog"))
	feed := emit.NewRSSWriter(cfg.Feed, logging.Component(baseLogger, "feed"))

	archive, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open run archive: %w", err)
	}

	var email ports.EmailNotifier
	if cfg.Email.Enabled && cfg.Email.Complete() {
		email = notify.NewEmailNotifier(cfg.Email, cfg.Venues.Categories, logging.Component(baseLogger, "email"))
	}

	var workspace ports.WorkspaceSink
	if cfg.Notion.Enabled {
		if sink := notify.NewNotionSink(cfg.Notion, logging.Component(baseLogger, "notion")); sink != nil {
			workspace = sink
		}
	}

	var analyzer ports.Analyzer
	if cfg.Analysis.Enabled && cfg.Analysis.APIKey != "" {
		analyzer = analyze.NewDeepSeekAnalyzer(cfg.Analysis, logging.Component(baseLogger, "analyzer"))
	}

	deps := pipeline.Deps{
		Source:    source,
		Venues:    venues,
		History:   store,
		Feed:      feed,
		Runs:      runs,
		Email:     email,
		Workspace: workspace,
		Analyzer:  analyzer,
	}
	if archive != nil {
		deps.Archive = archive
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		pipeline: pipeline.New(cfg, deps, logging.Component(baseLogger, "pipeline")),
		sched:    scheduler.NewCronScheduler(cfg.Scheduler),
		archive:  archive,
		alerts:   email,
	}, nil
}

// Run executes the pipelines once, or on a schedule when one is enabled.
// The scheduled mode blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.archive.Close()

	a.logLastArchivedRun(ctx)

	if !a.cfg.Scheduler.Enabled {
		return a.runOnce(ctx)
	}

	if err := a.sched.Start(ctx, func(t time.Time) {
		a.logger.Info("scheduled run starting", "at", t.Format(time.RFC3339))
		if err := a.runOnce(ctx); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Timezone)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.sched.Stop(stopCtx)
}

func (a *Application) runOnce(ctx context.Context) error {
	result := a.pipeline.Run(ctx)
	a.logResult("feed run finished", result.Message, result.Success, result.Warnings)
	if !result.Success {
		a.alertFailure(ctx, "feed pipeline", result.Message)
		return fmt.Errorf("feed pipeline: %s", result.Message)
	}

	if a.cfg.Venues.Enabled {
		venueResult := a.pipeline.RunVenues(ctx)
		a.logResult("venue run finished", venueResult.Message, venueResult.Success, venueResult.Warnings)
		if !venueResult.Success {
			a.alertFailure(ctx, "venue pipeline", venueResult.Message)
			return fmt.Errorf("venue pipeline: %s", venueResult.Message)
		}
	}
	return nil
}

// logLastArchivedRun surfaces where the archive left off, so a restarted
// deployment shows its delivery continuity up front.
func (a *Application) logLastArchivedRun(ctx context.Context) {
	if a.archive == nil {
		return
	}
	recent, err := a.archive.RecentRuns(ctx, pipeline.FeedChannel, 1)
	if err != nil {
		a.logger.Warn("archive lookup failed", "error", err)
		return
	}
	if len(recent) > 0 {
		a.logger.Info("last archived run",
			"run_id", recent[0].ID,
			"at", recent[0].Timestamp.Format(time.RFC3339),
			"papers", recent[0].PapersCount)
	}
}

// alertFailure mails the failure notice when a mailbox is configured. The
// alert itself is best effort and never escalates.
func (a *Application) alertFailure(ctx context.Context, stage, message string) {
	if a.alerts == nil {
		return
	}
	if err := a.alerts.SendErrorAlert(ctx, stage, message); err != nil {
		a.logger.Warn("error alert not sent", "stage", stage, "error", err)
	}
}

func (a *Application) logResult(event, message string, success bool, warnings []string) {
	if success {
		a.logger.Info(event, "message", message)
	} else {
		a.logger.Error(event, "message", message)
	}
	for _, w := range warnings {
		a.logger.Warn("run warning", "warning", w)
	}
}
