package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "PAPERWATCH_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	smtpPasswordEnv   = "SMTP_PASSWORD"
	notionTokenEnv    = "NOTION_TOKEN"
	deepseekAPIKeyEnv = "DEEPSEEK_API_KEY"
	openreviewUserEnv = "OPENREVIEW_USERNAME"
	openreviewPassEnv = "OPENREVIEW_PASSWORD"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Filter    FilterConfig    `yaml:"filter"`
	Arxiv     ArxivConfig     `yaml:"arxiv"`
	Feed      FeedConfig      `yaml:"feed"`
	History   HistoryConfig   `yaml:"history"`
	Email     EmailConfig     `yaml:"email"`
	Venues    VenuesConfig    `yaml:"venues"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Notion    NotionConfig    `yaml:"notion"`
	Database  DatabaseConfig  `yaml:"database"`
}

// LoggingConfig sets the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	Enabled        bool           `yaml:"enabled"`
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// DateRange optionally restricts papers to an explicit year and/or month.
// Zero means the field is unset.
type DateRange struct {
	Year  int `yaml:"year"`
	Month int `yaml:"month"`
}

// FilterConfig is the interest profile papers are matched against.
type FilterConfig struct {
	Keywords   []string   `yaml:"keywords"`
	Categories []string   `yaml:"categories"`
	MaxResults int        `yaml:"maxResults"`
	MaxDaysOld int        `yaml:"maxDaysOld"`
	DateRange  *DateRange `yaml:"dateRange"`
}

// Validate fails fast on a permanent configuration error, before any fetch.
func (f FilterConfig) Validate() error {
	if f.MaxResults <= 0 {
		return fmt.Errorf("filter.maxResults must be positive")
	}
	if f.MaxDaysOld < 0 {
		return fmt.Errorf("filter.maxDaysOld must not be negative")
	}
	if len(f.Categories) == 0 {
		return fmt.Errorf("filter.categories must not be empty")
	}
	if f.DateRange != nil {
		if f.DateRange.Month < 0 || f.DateRange.Month > 12 {
			return fmt.Errorf("filter.dateRange.month must be between 1 and 12")
		}
		if f.DateRange.Year < 0 {
			return fmt.Errorf("filter.dateRange.year must not be negative")
		}
	}
	return nil
}

// ArxivConfig describes the preprint API endpoint.
type ArxivConfig struct {
	APIURL string `yaml:"apiUrl"`
}

// FeedConfig describes the emitted syndication artifact.
type FeedConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Link        string `yaml:"link"`
	OutputDir   string `yaml:"outputDir"`
}

// HistoryConfig locates persisted delivery history and run records.
type HistoryConfig struct {
	Dir string `yaml:"dir"`
}

// EmailConfig wires the SMTP digest sink.
type EmailConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SMTPServer    string `yaml:"smtpServer"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	Recipient     string `yaml:"recipient"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// Complete reports whether every field required to send mail is present.
func (e EmailConfig) Complete() bool {
	return e.SMTPServer != "" && e.Port != 0 && e.Username != "" && e.Password != "" && e.Recipient != ""
}

// VenueConfig is one review-platform venue to track.
type VenueConfig struct {
	Name     string   `yaml:"name"`
	VenueID  string   `yaml:"venueId"`
	Keywords []string `yaml:"keywords"`
}

// VenueCategory groups venue papers in digests; first matching set wins.
type VenueCategory struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// VenuesConfig drives the venue-subscription channel.
type VenuesConfig struct {
	Enabled    bool            `yaml:"enabled"`
	BaseURL    string          `yaml:"baseUrl"`
	Username   string          `yaml:"username"`
	Password   string          `yaml:"password"`
	List       []VenueConfig   `yaml:"list"`
	Categories []VenueCategory `yaml:"categories"`
	FetchLimit int             `yaml:"fetchLimit"`
}

// AnalysisConfig drives the optional deep-analysis stage.
type AnalysisConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Endpoint          string   `yaml:"endpoint"`
	Model             string   `yaml:"model"`
	APIKey            string   `yaml:"apiKey"`
	MaxBatch          int      `yaml:"maxBatch"`
	MinScore          float64  `yaml:"minScore"`
	HighValueKeywords []string `yaml:"highValueKeywords"`
	IndicatorTerms    []string `yaml:"indicatorTerms"`
}

// NotionConfig wires the workspace-database sink.
type NotionConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"databaseId"`
}

// DatabaseConfig describes the optional Postgres run-record archive.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv(notionTokenEnv); v != "" {
		c.Notion.Token = v
	}
	if v := os.Getenv(deepseekAPIKeyEnv); v != "" {
		c.Analysis.APIKey = v
	}
	if v := os.Getenv(openreviewUserEnv); v != "" {
		c.Venues.Username = v
	}
	if v := os.Getenv(openreviewPassEnv); v != "" {
		c.Venues.Password = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	base.Scheduler.Enabled = override.Scheduler.Enabled

	if len(override.Filter.Keywords) > 0 {
		base.Filter.Keywords = override.Filter.Keywords
	}
	if len(override.Filter.Categories) > 0 {
		base.Filter.Categories = override.Filter.Categories
	}
	if override.Filter.MaxResults != 0 {
		base.Filter.MaxResults = override.Filter.MaxResults
	}
	if override.Filter.MaxDaysOld != 0 {
		base.Filter.MaxDaysOld = override.Filter.MaxDaysOld
	}
	if override.Filter.DateRange != nil {
		base.Filter.DateRange = override.Filter.DateRange
	}

	if override.Arxiv.APIURL != "" {
		base.Arxiv = override.Arxiv
	}

	if override.Feed.Title != "" {
		base.Feed.Title = override.Feed.Title
	}
	if override.Feed.Description != "" {
		base.Feed.Description = override.Feed.Description
	}
	if override.Feed.Link != "" {
		base.Feed.Link = override.Feed.Link
	}
	if override.Feed.OutputDir != "" {
		base.Feed.OutputDir = override.Feed.OutputDir
	}

	if override.History.Dir != "" {
		base.History = override.History
	}

	if override.Email.SMTPServer != "" || override.Email.Username != "" {
		base.Email = override.Email
	}

	if len(override.Venues.List) > 0 || override.Venues.Enabled {
		merged := override.Venues
		if merged.BaseURL == "" {
			merged.BaseURL = base.Venues.BaseURL
		}
		if merged.FetchLimit == 0 {
			merged.FetchLimit = base.Venues.FetchLimit
		}
		base.Venues = merged
	}

	if override.Analysis.Endpoint != "" || override.Analysis.Enabled {
		merged := override.Analysis
		if merged.Endpoint == "" {
			merged.Endpoint = base.Analysis.Endpoint
		}
		if merged.Model == "" {
			merged.Model = base.Analysis.Model
		}
		if merged.MaxBatch == 0 {
			merged.MaxBatch = base.Analysis.MaxBatch
		}
		if merged.MinScore == 0 {
			merged.MinScore = base.Analysis.MinScore
		}
		base.Analysis = merged
	}

	if override.Notion.Token != "" || override.Notion.DatabaseID != "" {
		base.Notion = override.Notion
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{Enabled: false, CronExpression: "0 8 * * *", Timezone: defaultTimezone, location: tz},
		Filter: FilterConfig{
			Keywords:   []string{},
			Categories: []string{"cs.AI"},
			MaxResults: 100,
			MaxDaysOld: 30,
		},
		Arxiv: ArxivConfig{APIURL: "https://export.arxiv.org/api/query"},
		Feed: FeedConfig{
			Title:       "paperwatch - Personalized Papers",
			Description: "Automatically filtered arXiv papers based on your research interests",
			Link:        "https://arxiv.org",
			OutputDir:   "output",
		},
		History: HistoryConfig{Dir: "history"},
		Email:   EmailConfig{Port: 587, SubjectPrefix: "[paperwatch]"},
		Venues: VenuesConfig{
			BaseURL:    "https://api2.openreview.net",
			FetchLimit: 1000,
		},
		Analysis: AnalysisConfig{
			Endpoint: "https://api.deepseek.com/chat/completions",
			Model:    "deepseek-chat",
			MaxBatch: 20,
			MinScore: 0.6,
		},
	}
}
