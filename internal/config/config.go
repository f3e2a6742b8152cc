package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

// Config is loaded once at startup and treated as read-only afterwards.
// Every component receives it (or a sub-struct) at construction.
type Config struct {
	Inbox      InboxConfig    `yaml:"inbox"`
	Mongo      MongoConfig    `yaml:"mongo"`
	LLM        LLMConfig      `yaml:"llm"`
	Analysis   AnalysisConfig `yaml:"analysis,omitempty"`
	Newsletter Newsletter     `yaml:"newsletter,omitempty"`
	Server     ServerConfig   `yaml:"server,omitempty"`
}

// InboxConfig holds IMAP settings for the monitored newsletter mailbox
type InboxConfig struct {
	Provider string `yaml:"provider"` // "gmail", "outlook", "imap"
	Server   string `yaml:"server"`   // e.g., "imap.gmail.com"
	Port     int    `yaml:"port"`     // e.g., 993
	Email    string `yaml:"email"`    // Mailbox that receives the newsletters
	Password string `yaml:"password"` // App password (not main password)
	Folder   string `yaml:"folder"`   // Folder to scan (default: "INBOX")
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// Enabled reports whether an API key is present. Without one the
// pipeline runs on scrape and heuristic fallbacks only.
func (l LLMConfig) Enabled() bool { return l.APIKey != "" }

// AnalysisConfig carries the tunable thresholds of the detection
// pipeline. Zero values are replaced with defaults in Load.
type AnalysisConfig struct {
	MaxEmailsPerRun      int          `yaml:"max_emails_per_run"`
	MinSponsorIndicators int          `yaml:"min_sponsor_indicators"`
	MinSectionMarkers    int          `yaml:"min_section_markers"`
	AcceptThreshold      float64      `yaml:"accept_threshold"`
	ReviewThreshold      float64      `yaml:"review_threshold"`
	ScrapeTimeoutSec     int          `yaml:"scrape_timeout_sec"`
	MaxContactLinks      int          `yaml:"max_contact_links"`
	Weights              ScoreWeights `yaml:"weights,omitempty"`
}

// ScoreWeights are the per-bucket contributions and caps of the
// confidence score.
type ScoreWeights struct {
	Marker      float64 `yaml:"marker"`
	MarkerMax   float64 `yaml:"marker_max"`
	Link        float64 `yaml:"link"`
	LinkMax     float64 `yaml:"link_max"`
	Tracking    float64 `yaml:"tracking"`
	TrackingMax float64 `yaml:"tracking_max"`
	Section     float64 `yaml:"section"`
	SectionMax  float64 `yaml:"section_max"`
}

// DefaultScoreWeights: marker phrases dominate, the other buckets can
// only nudge.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Marker: 0.10, MarkerMax: 0.40,
		Link: 0.05, LinkMax: 0.30,
		Tracking: 0.05, TrackingMax: 0.20,
		Section: 0.02, SectionMax: 0.10,
	}
}

// Newsletter identifies the operator's own properties so their links
// are never recorded as sponsors.
type Newsletter struct {
	Name        string   `yaml:"name,omitempty"`
	SelfDomains []string `yaml:"self_domains,omitempty"`
}

type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"` // default ":8090"
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".sponsorscan", "config.yaml")
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Secrets may live in the environment instead of the file.
	// A .env next to the binary is picked up if present.
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SPONSORSCAN_IMAP_PASSWORD"); v != "" {
		cfg.Inbox.Password = v
	}
	if v := os.Getenv("SPONSORSCAN_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Inbox.Folder == "" {
		cfg.Inbox.Folder = "INBOX"
	}
	if cfg.Inbox.Provider == "gmail" && cfg.Inbox.Server == "" {
		cfg.Inbox.Server = "imap.gmail.com"
		cfg.Inbox.Port = 993
	}
	if cfg.Inbox.Provider == "outlook" && cfg.Inbox.Server == "" {
		cfg.Inbox.Server = "outlook.office365.com"
		cfg.Inbox.Port = 993
	}

	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "sponsorscan"
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}
	if cfg.LLM.TimeoutSec == 0 {
		cfg.LLM.TimeoutSec = 20
	}

	a := &cfg.Analysis
	if a.MaxEmailsPerRun == 0 {
		a.MaxEmailsPerRun = 30
	}
	if a.MinSponsorIndicators == 0 {
		a.MinSponsorIndicators = 2
	}
	if a.MinSectionMarkers == 0 {
		a.MinSectionMarkers = 1
	}
	if a.AcceptThreshold == 0 {
		a.AcceptThreshold = 0.8
	}
	if a.ReviewThreshold == 0 {
		a.ReviewThreshold = 0.5
	}
	if a.ScrapeTimeoutSec == 0 {
		a.ScrapeTimeoutSec = 5
	}
	if a.MaxContactLinks == 0 {
		a.MaxContactLinks = 3
	}
	if a.Weights == (ScoreWeights{}) {
		a.Weights = DefaultScoreWeights()
	}

	for i, d := range cfg.Newsletter.SelfDomains {
		cfg.Newsletter.SelfDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8090"
	}
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if c.Inbox.Email == "" {
		return fmt.Errorf("inbox: email address is required")
	}
	if c.Inbox.Password == "" {
		return fmt.Errorf("inbox: password (app password) is required")
	}
	if c.Inbox.Server == "" {
		return fmt.Errorf("inbox: IMAP server is required")
	}
	if c.Inbox.Port == 0 {
		return fmt.Errorf("inbox: IMAP port is required")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo: uri is required")
	}
	if c.Analysis.AcceptThreshold < c.Analysis.ReviewThreshold {
		return fmt.Errorf("analysis: accept_threshold must be >= review_threshold")
	}
	return nil
}
