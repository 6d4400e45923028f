package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"ktm_scrooper/config"
	"ktm_scrooper/identity"
	"ktm_scrooper/models"
	"ktm_scrooper/services"
	"ktm_scrooper/storage"
)

// Orchestrator runs sites end to end: drives the handlers tab by tab,
// mirrors results into the operational store and CSV ledger, fans captures
// out to the Postgres archive when configured, and queues artifacts for
// upload.
type Orchestrator struct {
	cfg      *config.Config
	store    *storage.SQLiteStore
	handlers map[string]Handler
	ledgers  map[string]*storage.CSVLedger
	paused   bool

	pgStore     *storage.PostgresStore
	planService *services.PlanService
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore) *Orchestrator {
	handlers := make(map[string]Handler)
	for id, siteCfg := range cfg.Sites {
		handlers[id] = NewHandler(siteCfg, cfg.Scraper, cfg.OutDir)
	}

	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		handlers: handlers,
		ledgers:  make(map[string]*storage.CSVLedger),
	}
}

// SetServices injects the optional Postgres archive.
func (o *Orchestrator) SetServices(pgStore *storage.PostgresStore, plans *services.PlanService) {
	o.pgStore = pgStore
	o.planService = plans
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused {
		log.Println("Scraper is paused, skipping run")
		return nil
	}

	for siteID := range o.cfg.Sites {
		if err := o.RunSite(ctx, siteID); err != nil {
			log.Printf("Error running site %s: %v", siteID, err)
		}
	}

	return nil
}

func (o *Orchestrator) RunSite(ctx context.Context, siteID string) error {
	siteCfg, ok := o.cfg.Sites[siteID]
	if !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}

	handler, ok := o.handlers[siteID]
	if !ok {
		return fmt.Errorf("no handler for site: %s", siteID)
	}

	ledger, err := o.ledgerFor(siteCfg)
	if err != nil {
		return err
	}

	run := &models.ScrapeRun{
		SiteID:    siteID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}

	runID, err := o.store.CreateRun(run)
	if err != nil {
		return err
	}
	run.ID = runID

	var pgRunID *int64
	if o.pgStore != nil {
		pgRun := &models.DomainScrapeRun{
			Source:    siteID,
			StartedAt: time.Now(),
			Status:    "running",
		}
		if err := o.pgStore.CreateScrapeRun(ctx, pgRun); err != nil {
			log.Printf("Warning: failed to create Postgres run: %v", err)
		} else {
			pgRunID = &pgRun.ID
		}
	}

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", siteCfg.Name), siteID)

	stats := &services.ProcessStats{}
	var seenPlans []uuid.UUID

	defer func() {
		handler.Close()

		if bh, ok := handler.(*BrowserHandler); ok && bh.TracePath() != "" {
			if err := o.store.QueueArtifact(&run.ID, models.ArtifactKindTrace, bh.TracePath()); err != nil {
				log.Printf("Warning: could not queue trace artifact: %v", err)
			}
		}
		if run.PlansFound > 0 {
			o.store.QueueArtifact(&run.ID, models.ArtifactKindCSV, ledger.Path())
		}

		now := time.Now()
		run.FinishedAt = &now
		o.store.UpdateRun(run)
		o.store.UpdateSiteStats(siteID)

		if pgRunID != nil {
			pgRun := &models.DomainScrapeRun{
				ID:           *pgRunID,
				FinishedAt:   &now,
				Status:       "completed",
				PlansFound:   stats.PlansProcessed,
				PlansNew:     stats.PlansNew,
				PriceChanges: stats.PriceChanges,
				ErrorsCount:  stats.Errors,
				Metadata:     stats.ToJSON(),
			}
			if run.Status == models.RunStatusFailed {
				pgRun.Status = "failed"
			}
			o.pgStore.UpdateScrapeRun(ctx, pgRun)
		}
	}()

	for _, tab := range siteCfg.Tabs {
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Scraping tab: %s", tab), siteID)

		result, err := handler.Scrape(ctx, tab)
		if result != nil {
			run.CardsFound += result.CardsFound
			run.CardsSkipped += result.CardsSkipped
		}
		if err != nil {
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Scrape error for tab %s: %v", tab, err), siteID)
			run.ErrorsCount++
			run.Status = models.RunStatusFailed
			return err
		}

		run.PlansFound += len(result.Plans)
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Tab %s: %d plans captured", tab, len(result.Plans)), siteID)

		for i := range result.Plans {
			plan := &result.Plans[i]
			planID, err := o.processPlan(ctx, run, plan, ledger, pgRunID, stats)
			if err != nil {
				o.log(run.ID, models.LogLevelError, fmt.Sprintf("Process error for %q: %v", plan.ModalTitle, err), siteID)
				run.ErrorsCount++
				stats.Errors++
				continue
			}
			if planID != uuid.Nil {
				seenPlans = append(seenPlans, planID)
			}
		}
	}

	if o.planService != nil && run.ErrorsCount == 0 && len(seenPlans) > 0 {
		retired, err := o.planService.RetirePlans(ctx, siteID, seenPlans)
		if err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Retire pass failed: %v", err), siteID)
		} else if retired > 0 {
			o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Retired %d plans no longer listed", retired), siteID)
		}
	}

	run.Status = models.RunStatusCompleted
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d cards, %d plans captured, %d new, %d price changes, %d skipped",
			run.CardsFound, run.PlansFound, stats.PlansNew, stats.PriceChanges, run.CardsSkipped), siteID)

	return nil
}

// processPlan mirrors a capture into SQLite and the CSV ledger, queues its
// artifacts, and archives it in Postgres when the service is wired.
func (o *Orchestrator) processPlan(ctx context.Context, run *models.ScrapeRun, raw *models.RawPlan, ledger *storage.CSVLedger, pgRunID *int64, stats *services.ProcessStats) (uuid.UUID, error) {
	fingerprint := identity.Fingerprint(raw)

	existing, err := o.store.GetPlanByFingerprint(fingerprint)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get plan: %w", err)
	}

	title := raw.ModalTitle
	if title == "" {
		title = raw.ListTitle
	}

	plan := &models.Plan{
		ID:          fingerprint,
		Fingerprint: fingerprint,
		Site:        raw.Site,
		TabName:     raw.TabName,
		SubtabName:  raw.SubtabName,
		Title:       title,
		Price:       raw.Price,
		FirstSeenAt: raw.ScrapedAt,
		LastSeenAt:  raw.ScrapedAt,
		TimesSeen:   1,
	}
	if existing != nil {
		plan.FirstSeenAt = existing.FirstSeenAt
		plan.TimesSeen = existing.TimesSeen + 1
	} else {
		run.PlansNew++
	}
	if err := o.store.UpsertPlan(plan); err != nil {
		return uuid.Nil, fmt.Errorf("upsert plan: %w", err)
	}

	extras, _ := json.Marshal(map[string]json.RawMessage{
		"sections": raw.SectionsJSON,
		"dl":       raw.DLJSON,
		"tables":   raw.TablesJSON,
		"links":    raw.LinksJSON,
		"bullets":  raw.BulletsJSON,
	})
	capture := &models.PlanCapture{
		PlanID:         plan.ID,
		Site:           raw.Site,
		TabName:        raw.TabName,
		SubtabName:     raw.SubtabName,
		Title:          title,
		PriceText:      raw.PriceText,
		Price:          raw.Price,
		SpeedTopList:   raw.SpeedTopList,
		SpeedDataGuide: raw.SpeedDataGuide,
		HTMLPath:       raw.HTMLPath,
		ScreenshotPath: raw.ScreenshotPath,
		Extras:         extras,
		ScrapedAt:      raw.ScrapedAt,
		RunID:          run.ID,
	}
	if err := o.store.CreateCapture(capture); err != nil {
		return uuid.Nil, fmt.Errorf("create capture: %w", err)
	}

	if err := ledger.Append(raw); err != nil {
		log.Printf("Warning: csv append failed: %v", err)
	}

	if raw.HTMLPath != "" {
		o.store.QueueArtifact(&run.ID, models.ArtifactKindHTML, raw.HTMLPath)
	}
	if raw.ScreenshotPath != "" {
		o.store.QueueArtifact(&run.ID, models.ArtifactKindScreenshot, raw.ScreenshotPath)
	}

	if o.planService == nil {
		return uuid.Nil, nil
	}

	result, err := o.planService.ProcessPlan(ctx, raw, pgRunID)
	if err != nil {
		return uuid.Nil, err
	}
	stats.Aggregate(result)
	if result.PriceChanged {
		run.PriceChanges++
	}
	return result.PlanID, nil
}

func (o *Orchestrator) ledgerFor(siteCfg *config.SiteConfig) (*storage.CSVLedger, error) {
	if ledger, ok := o.ledgers[siteCfg.ID]; ok {
		return ledger, nil
	}
	path := fmt.Sprintf("%s/%s/%s_modal_data.csv", o.cfg.OutDir, siteCfg.OutSubdir, siteCfg.ID)
	ledger, err := storage.NewCSVLedger(path)
	if err != nil {
		return nil, fmt.Errorf("open csv ledger: %w", err)
	}
	o.ledgers[siteCfg.ID] = ledger
	return ledger, nil
}

func (o *Orchestrator) HandleCommand(cmd *models.Command) error {
	params, err := o.store.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch cmd.Command {
	case models.CmdScrapeNow:
		return o.RunAll(ctx)
	case models.CmdScrapeSite:
		if params.Site != "" {
			return o.RunSite(ctx, params.Site)
		}
		return o.RunAll(ctx)
	case models.CmdPause:
		o.paused = true
		log.Println("Scraper paused")
	case models.CmdResume:
		o.paused = false
		log.Println("Scraper resumed")
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, siteID string) {
	log.Printf("[%s] %s: %s", level, siteID, message)
	o.store.Log(&runID, level, message, siteID)
}

func (o *Orchestrator) GetSiteIDs() []string {
	var ids []string
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) MarshalStatus() ([]byte, error) {
	status := map[string]interface{}{
		"paused": o.paused,
		"sites":  o.GetSiteIDs(),
	}
	return json.Marshal(status)
}
