package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	Proxy     ProxyConfig
	Postgres  PostgresConfig
	S3        S3Config
	OutDir    string
	DBPath    string
	LogLevel  string
	Sites     map[string]*SiteConfig
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// ScraperConfig carries the pacing and browser knobs shared by all sites.
type ScraperConfig struct {
	RequestInterval time.Duration
	MaxPerTab       int
	Headless        bool
	SlowMoMS        int
	Trace           bool
}

type ProxyConfig struct {
	URL string
}

type PostgresConfig struct {
	DBURL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// SiteConfig describes one scrape target: where it lives and which
// selectors drive tab, card, and modal interaction.
type SiteConfig struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	Handler        string    `yaml:"handler"`
	URL            string    `yaml:"url"`
	OutSubdir      string    `yaml:"out_subdir"`
	Tabs           []string  `yaml:"tabs"`
	SubtabKeywords []string  `yaml:"subtab_keywords"`
	Selectors      Selectors `yaml:"selectors"`
	Timeouts       Timeouts  `yaml:"timeouts"`
}

type Selectors struct {
	TabButton       string   `yaml:"tab_button"`
	Card            string   `yaml:"card"`
	CardTitle       string   `yaml:"card_title"`
	AccordionButton string   `yaml:"accordion_button"`
	ShowMore        []string `yaml:"show_more"`
	ModalTarget     string   `yaml:"modal_target"`
	ModalContent    string   `yaml:"modal_content"`
	BlockingUI      []string `yaml:"blocking_ui"`
}

type Timeouts struct {
	PageLoadMS   int `yaml:"page_load_ms"`
	CardWaitMS   int `yaml:"card_wait_ms"`
	ModalOpenMS  int `yaml:"modal_open_ms"`
	ModalCloseMS int `yaml:"modal_close_ms"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			RequestInterval: time.Duration(getEnvFloat("REQUEST_INTERVAL_SEC", 0.35) * float64(time.Second)),
			MaxPerTab:       getEnvInt("MAX_PER_TAB", 0),
			Headless:        os.Getenv("HEADLESS") == "true",
			SlowMoMS:        getEnvInt("SLOWMO_MS", 0),
			Trace:           os.Getenv("TRACE") == "true",
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Postgres: PostgresConfig{
			DBURL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "ap-northeast-2"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		OutDir:   getEnv("OUT_DIR", "."),
		DBPath:   getEnv("DB_PATH", "scraper.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sites:    make(map[string]*SiteConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}
	for _, site := range cfg.Sites {
		site.applyDefaults()
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	configDir := "config/sites"
	entries, err := os.ReadDir(configDir)
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

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return err
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

// applyDefaults fills the selector set and timeouts with the values the
// rate list page is known to use, so a minimal YAML still works.
func (s *SiteConfig) applyDefaults() {
	if s.URL == "" {
		s.URL = "https://www.ktmmobile.com/rate/rateList.do"
	}
	if s.OutSubdir == "" {
		s.OutSubdir = "KT_MMobile"
	}
	if len(s.Tabs) == 0 {
		s.Tabs = []string{"유심/eSIM 요금제", "제휴 요금제", "휴대폰 요금제"}
	}
	if len(s.SubtabKeywords) == 0 {
		s.SubtabKeywords = []string{"LTE", "5G"}
	}
	sel := &s.Selectors
	if sel.TabButton == "" {
		sel.TabButton = "button.c-tabs__button"
	}
	if sel.Card == "" {
		sel.Card = "li.rate-content__item"
	}
	if sel.CardTitle == "" {
		sel.CardTitle = ".rate-info__title, .rate-content__title, .title"
	}
	if sel.AccordionButton == "" {
		sel.AccordionButton = ".c-accordion__button"
	}
	if len(sel.ShowMore) == 0 {
		sel.ShowMore = []string{".c-pagination__more", ".btn-more", "button:has-text('더보기')"}
	}
	if sel.ModalTarget == "" {
		sel.ModalTarget = "modalProduct"
	}
	if sel.ModalContent == "" {
		sel.ModalContent = ".c-modal__content, .c-modal__body, [role='document'], .c-modal__dialog"
	}
	if len(sel.BlockingUI) == 0 {
		sel.BlockingUI = []string{
			"#pullProductCompare", ".rate-compare__floating", ".floating-compare",
			".btn-compare", ".compare",
		}
	}
	t := &s.Timeouts
	if t.PageLoadMS == 0 {
		t.PageLoadMS = 70000
	}
	if t.CardWaitMS == 0 {
		t.CardWaitMS = 15000
	}
	if t.ModalOpenMS == 0 {
		t.ModalOpenMS = 10000
	}
	if t.ModalCloseMS == 0 {
		t.ModalCloseMS = 2500
	}
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

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
