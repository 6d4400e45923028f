package workers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"ktm_scrooper/config"
	"ktm_scrooper/models"
	"ktm_scrooper/storage"
)

// HealthcheckWorker probes the configured sites between scrape runs so an
// outage or a bot-wall shows up in site_stats before the next full run fails.
type HealthcheckWorker struct {
	cfg        *config.Config
	store      *storage.SQLiteStore
	httpClient *http.Client
	triggerCh  chan struct{}
	logFunc    LogFunc
}

func NewHealthcheckWorker(cfg *config.Config, store *storage.SQLiteStore, client *http.Client) *HealthcheckWorker {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &HealthcheckWorker{
		cfg:        cfg,
		store:      store,
		httpClient: client,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *HealthcheckWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// CheckResult contains the outcome of probing a site
type CheckResult struct {
	StatusCode int
	IsUp       bool
	Error      error
}

// Check probes a site URL with a HEAD request. The rate list is rendered
// client-side, so a 200 here only proves the page shell is reachable.
func (w *HealthcheckWorker) Check(ctx context.Context, siteURL string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, "HEAD", siteURL, nil)
	if err != nil {
		return CheckResult{Error: err}
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return CheckResult{Error: err}
	}
	resp.Body.Close()

	result := CheckResult{StatusCode: resp.StatusCode}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.IsUp = true
	case resp.StatusCode == 403 || resp.StatusCode == 429:
		// reachable but refusing us; worth flagging either way
		result.IsUp = false
	default:
		result.IsUp = false
	}

	return result
}

// Run starts the healthcheck worker loop
func (w *HealthcheckWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Healthcheck worker stopping")
			return
		case <-ticker.C:
			w.checkAll(ctx)
		case <-w.triggerCh:
			log.Println("Healthcheck worker triggered manually")
			w.checkAll(ctx)
		}
	}
}

func (w *HealthcheckWorker) checkAll(ctx context.Context) {
	for siteID, siteCfg := range w.cfg.Sites {
		result := w.Check(ctx, siteCfg.URL)

		now := time.Now()
		if result.Error != nil {
			log.Printf("Healthcheck: %s unreachable: %v", siteID, result.Error)
			w.store.TouchSiteCheck(siteID, 0, now)
			w.logFunc(models.LogLevelWarn, "healthcheck", fmt.Sprintf("%s unreachable: %v", siteID, result.Error))
			continue
		}

		w.store.TouchSiteCheck(siteID, result.StatusCode, now)

		if !result.IsUp {
			log.Printf("Healthcheck: %s returned %d", siteID, result.StatusCode)
			w.logFunc(models.LogLevelWarn, "healthcheck", fmt.Sprintf("%s returned %d", siteID, result.StatusCode))
		}

		time.Sleep(500 * time.Millisecond)
	}
}
