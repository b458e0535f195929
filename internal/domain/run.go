package domain

import "time"

// FilterSnapshot is the filter configuration a run was executed with.
type FilterSnapshot struct {
	Keywords   []string `json:"keywords"`
	Categories []string `json:"categories"`
	MaxDaysOld int      `json:"max_days_old"`
}

// PaperSummary is the compact per-paper entry kept inside a run record.
type PaperSummary struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	PublishedAt     time.Time `json:"published"`
	Categories      []string  `json:"categories,omitempty"`
	MatchedKeywords []string  `json:"matched_keywords,omitempty"`
}

// RunRecord is written once per pipeline execution and never mutated.
type RunRecord struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Channel      string         `json:"channel"`
	Filter       FilterSnapshot `json:"config"`
	PapersCount  int            `json:"papers_count"`
	Papers       []PaperSummary `json:"papers"`
	ArtifactName string         `json:"output_file,omitempty"`
}

// SourceOutcome captures one source's result inside a multi-source run.
type SourceOutcome struct {
	Success     bool   `json:"success"`
	PapersCount int    `json:"papers_count"`
	NewPapers   int    `json:"new_papers_count"`
	Error       string `json:"error,omitempty"`
}

// AnalysisReport summarises the optional deep-analysis stage.
type AnalysisReport struct {
	AnalyzedCount int     `json:"analyzed_count"`
	Failures      int     `json:"failures"`
	AverageScore  float64 `json:"average_score"`
}

// RunResult is the orchestrator's structured outcome. It always distinguishes
// clean success, partial success with per-source detail, and hard failure;
// errors never escape the orchestrator as panics.
type RunResult struct {
	Success      bool
	Message      string
	PapersCount  int
	ArtifactName string
	HistoryID    string
	Elapsed      time.Duration
	PerSource    map[string]SourceOutcome
	Analysis     *AnalysisReport
	Warnings     []string
}
