package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jomei/notionapi"

	"paperwatch/internal/config"
	"paperwatch/internal/domain"
	"paperwatch/internal/ports"
)

const abstractMaxRunes = 2000

// NotionSink mirrors delivered papers into a workspace database, one page
// per paper. A page that fails to create is logged and skipped so a single
// API hiccup never loses the rest of the batch.
type NotionSink struct {
	client *notionapi.Client
	dbID   notionapi.DatabaseID
	logger *slog.Logger
}

var _ ports.WorkspaceSink = (*NotionSink)(nil)

// NewNotionSink returns nil when the sink is not fully configured.
func NewNotionSink(cfg config.NotionConfig, logger *slog.Logger) *NotionSink {
	if cfg.Token == "" || cfg.DatabaseID == "" {
		return nil
	}
	return &NotionSink{
		client: notionapi.NewClient(notionapi.Token(cfg.Token)),
		dbID:   notionapi.DatabaseID(cfg.DatabaseID),
		logger: logger,
	}
}

// SyncPapers creates one page per paper and reports how many succeeded.
func (s *NotionSink) SyncPapers(ctx context.Context, papers []domain.Paper) (int, error) {
	if s == nil {
		return 0, nil
	}

	synced := 0
	for _, p := range papers {
		if err := s.createPage(ctx, p); err != nil {
			if s.logger != nil {
				s.logger.Warn("workspace page creation failed, skipping paper", "paper", p.ID, "error", err)
			}
			continue
		}
		synced++
	}

	if synced < len(papers) {
		return synced, fmt.Errorf("synced %d of %d papers", synced, len(papers))
	}
	return synced, nil
}

func (s *NotionSink) createPage(ctx context.Context, p domain.Paper) error {
	venue := p.Venue
	if venue == "" {
		venue = string(p.Source)
	}

	properties := notionapi.Properties{
		"Title": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Text: &notionapi.Text{Content: p.Title}},
			},
		},
		"URL": notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  p.URL,
		},
		"Venue": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: venue},
		},
	}
	if p.Score != nil {
		properties["Score"] = notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: *p.Score,
		}
	}
	if p.Abstract != "" {
		properties["Abstract"] = notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Text: &notionapi.Text{Content: truncateRunes(p.Abstract, abstractMaxRunes)}},
			},
		}
	}

	request := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: s.dbID,
		},
		Properties: properties,
	}

	if _, err := s.client.Page.Create(ctx, request); err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

func truncateRunes(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max-3]) + "..."
}
