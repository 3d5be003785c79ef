package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string
	MinIO       MinIOConfig
	Scheduler   SchedulerConfig
	Scraper     ScraperConfig
	DBPath      string
	LogLevel    string
	LogFile     string
	SilverTable string
	SitesDir    string
	Sites       map[string]*SiteConfig
}

type MinIOConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

type SchedulerConfig struct {
	Interval       time.Duration
	Cron           string
	ReparseEvery   time.Duration
	ReparseBatch   int
	CommandPolling time.Duration
}

type ScraperConfig struct {
	DelayMS  int
	ProxyURL string
}

// Fetcher kinds accepted in site configs.
const (
	FetcherHTTP    = "http"
	FetcherColly   = "colly"
	FetcherBrowser = "browser"
)

type SiteConfig struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Fetcher     string            `yaml:"fetcher"`
	BaseURL     string            `yaml:"base_url"`
	SearchURL   string            `yaml:"search_url"`
	DelayMS     int               `yaml:"delay_ms"`
	JitterMS    int               `yaml:"jitter_ms"`
	MaxPages    int               `yaml:"max_pages"`
	MaxItems    int               `yaml:"max_items"`
	MaxRepeated int               `yaml:"max_repeated"`
	Headers     map[string]string `yaml:"headers"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		MinIO: MinIOConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			Bucket:    getEnv("MINIO_BUCKET", "realestate"),
			AccessKey: os.Getenv("MINIO_ROOT_USER"),
			SecretKey: os.Getenv("MINIO_ROOT_PASSWORD"),
			Region:    getEnv("MINIO_REGION", "us-east-1"),
		},
		Scheduler: SchedulerConfig{
			Cron:           os.Getenv("SCRAPE_CRON"),
			ReparseBatch:   getEnvInt("REPARSE_BATCH", 50),
			ReparseEvery:   getEnvDuration("REPARSE_INTERVAL", 10*time.Minute),
			CommandPolling: 2 * time.Second,
		},
		Scraper: ScraperConfig{
			DelayMS:  getEnvInt("SCRAPE_DELAY_MS", 500),
			ProxyURL: os.Getenv("PROXY_URL"),
		},
		DBPath:      getEnv("DB_PATH", "scraper.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", "daemon.log"),
		SilverTable: getEnv("SILVER_TABLE", "listings_silver"),
		SitesDir:    getEnv("SITES_DIR", "config/sites"),
		Sites:       make(map[string]*SiteConfig),
	}

	cfg.Scheduler.Interval = getEnvDuration("SCRAPE_INTERVAL", 0)

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	entries, err := os.ReadDir(c.SitesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(c.SitesDir, entry.Name())
		site, err := LoadSite(path)
		if err != nil {
			return err
		}
		site.applyDefaults(c.Scraper.DelayMS)
		c.Sites[site.ID] = site
	}

	return nil
}

// LoadSite reads and validates one site YAML file.
func LoadSite(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if site.ID == "" {
		return nil, fmt.Errorf("%s: id is required", path)
	}
	if site.SearchURL == "" {
		return nil, fmt.Errorf("%s: search_url is required", path)
	}
	switch site.Fetcher {
	case "", FetcherHTTP, FetcherColly, FetcherBrowser:
	default:
		return nil, fmt.Errorf("%s: unknown fetcher %q", path, site.Fetcher)
	}
	return &site, nil
}

func (s *SiteConfig) applyDefaults(delayMS int) {
	if s.Fetcher == "" {
		s.Fetcher = FetcherHTTP
	}
	if s.DelayMS == 0 {
		s.DelayMS = delayMS
	}
	if s.BaseURL == "" {
		s.BaseURL = baseOf(s.SearchURL)
	}
}

// Delay returns the fixed part of the polite pause between fetches.
func (s *SiteConfig) Delay() time.Duration {
	return time.Duration(s.DelayMS) * time.Millisecond
}

func (s *SiteConfig) Jitter() time.Duration {
	return time.Duration(s.JitterMS) * time.Millisecond
}

func baseOf(rawURL string) string {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return ""
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
