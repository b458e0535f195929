package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"paperwatch/internal/config"
	"paperwatch/internal/domain"
	"paperwatch/internal/ports"
)

const analysisPrompt = "You are a research assistant. Summarize the paper's core contribution, " +
	"method and evidence in at most five sentences, then state who benefits from the result."

// DeepSeekAnalyzer runs the deep-analysis stage against an OpenAI-compatible
// chat-completions endpoint, one request per paper. A paper whose request
// fails is recorded as a failure and skipped; the batch always completes.
type DeepSeekAnalyzer struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Analyzer = (*DeepSeekAnalyzer)(nil)

// NewDeepSeekAnalyzer builds an analyzer from configuration.
func NewDeepSeekAnalyzer(cfg config.AnalysisConfig, logger *slog.Logger) *DeepSeekAnalyzer {
	return &DeepSeekAnalyzer{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// AnalyzeBatch analyzes each paper in turn and aggregates the outcome.
func (a *DeepSeekAnalyzer) AnalyzeBatch(ctx context.Context, papers []domain.Paper) (domain.AnalysisReport, error) {
	if a == nil {
		return domain.AnalysisReport{}, fmt.Errorf("analyzer is nil")
	}
	if a.apiKey == "" || a.endpoint == "" || a.model == "" {
		return domain.AnalysisReport{}, fmt.Errorf("analyzer misconfigured")
	}

	report := domain.AnalysisReport{}
	scoreSum := 0.0
	for _, p := range papers {
		if err := a.analyzePaper(ctx, p); err != nil {
			report.Failures++
			if a.logger != nil {
				a.logger.Warn("analysis failed, skipping paper", "paper", p.ID, "error", err)
			}
			continue
		}
		report.AnalyzedCount++
		if p.Score != nil {
			scoreSum += *p.Score
		}
	}
	if report.AnalyzedCount > 0 {
		report.AverageScore = scoreSum / float64(report.AnalyzedCount)
	}
	return report, nil
}

func (a *DeepSeekAnalyzer) analyzePaper(ctx context.Context, p domain.Paper) error {
	body, err := json.Marshal(map[string]any{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "system", "content": analysisPrompt},
			{"role": "user", "content": paperPrompt(p)},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal analysis payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("analysis endpoint error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return fmt.Errorf("decode analysis response: %w", err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return fmt.Errorf("analysis response contained no content")
	}

	if a.logger != nil {
		a.logger.Info("paper analyzed", "paper", p.ID, "title", p.Title)
	}
	return nil
}

func paperPrompt(p domain.Paper) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	if names := p.AuthorNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(names, ", "))
	}
	if len(p.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(p.Categories, ", "))
	}
	fmt.Fprintf(&b, "Abstract: %s\n", p.Abstract)
	return b.String()
}
