package scraper

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"ktm_scrooper/config"
	"ktm_scrooper/logging"
	"ktm_scrooper/models"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/126.0.0.0 Safari/537.36"

// BrowserHandler drives a Chromium session over the rate list page: tab and
// subtab traversal, card enumeration, and per-card modal capture. Page
// lifecycle events (console, page errors, failed requests, 4xx/5xx
// responses) are recorded through the activity logger for the whole session.
type BrowserHandler struct {
	cfg  *config.SiteConfig
	opts config.ScraperConfig

	outDir   string
	activity *logging.ActivityLogger

	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	page        playwright.Page
	mu          sync.Mutex
	initialized bool
	tracePath   string
}

// TabResult is the outcome of scraping one top tab (all of its subtabs).
type TabResult struct {
	Plans        []models.RawPlan
	CardsFound   int
	CardsSkipped int
}

func NewBrowserHandler(cfg *config.SiteConfig, opts config.ScraperConfig, outDir string) *BrowserHandler {
	return &BrowserHandler{cfg: cfg, opts: opts, outDir: outDir}
}

func (h *BrowserHandler) ID() string {
	return h.cfg.ID
}

// siteDir is where this site's artifacts live, e.g. <outDir>/KT_MMobile.
func (h *BrowserHandler) siteDir() string {
	return filepath.Join(h.outDir, h.cfg.OutSubdir)
}

// TracePath returns the trace archive path, or "" when tracing is off or
// the session has not been closed yet.
func (h *BrowserHandler) TracePath() string {
	return h.tracePath
}

func (h *BrowserHandler) Scrape(ctx context.Context, tab string) (*TabResult, error) {
	if err := h.ensureSession(); err != nil {
		return nil, err
	}

	page := h.page
	h.closeAllModals()

	tabBtn := page.Locator(fmt.Sprintf("%s:has-text(%q)", h.cfg.Selectors.TabButton, tab)).First()
	if n, _ := tabBtn.Count(); n == 0 {
		return nil, fmt.Errorf("tab %q not found", tab)
	}
	if err := tabBtn.Click(); err != nil {
		return nil, fmt.Errorf("click tab %q: %w", tab, err)
	}
	page.WaitForTimeout(250)

	subtabs := h.findSubtabs()
	result := &TabResult{}

	if len(subtabs) == 0 {
		if err := h.collectCards(ctx, tab, "", result); err != nil {
			return result, err
		}
		return result, nil
	}

	for _, sub := range subtabs {
		h.closeAllModals()
		subBtn := page.Locator(fmt.Sprintf("%s:has-text(%q)", h.cfg.Selectors.TabButton, sub)).First()
		if n, _ := subBtn.Count(); n > 0 {
			subBtn.Click()
			page.WaitForTimeout(250)
		}
		if err := h.collectCards(ctx, tab, sub, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (h *BrowserHandler) ensureSession() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	for _, sub := range []string{"screens", "modals", "html", "logs"} {
		if err := os.MkdirAll(filepath.Join(h.siteDir(), sub), 0755); err != nil {
			return fmt.Errorf("create output dirs: %w", err)
		}
	}

	activity, err := logging.OpenActivityLog(filepath.Join(h.siteDir(), "logs", "playwright_activity.log"))
	if err != nil {
		return err
	}
	h.activity = activity

	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	h.browser, err = h.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(h.opts.Headless),
		SlowMo:   playwright.Float(float64(h.opts.SlowMoMS)),
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	h.context, err = h.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:        &playwright.Size{Width: 1440, Height: 900},
		UserAgent:       playwright.String(userAgent),
		AcceptDownloads: playwright.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}

	if h.opts.Trace {
		if err := h.context.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
			Sources:     playwright.Bool(true),
		}); err != nil {
			log.Printf("Warning: could not start tracing: %v", err)
		}
	}

	page, err := h.context.NewPage()
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	h.page = page

	page.OnConsole(func(msg playwright.ConsoleMessage) {
		h.activity.Console(msg.Type(), msg.Text())
	})
	page.OnPageError(func(err error) {
		h.activity.PageError(err.Error())
	})
	page.OnRequestFailed(func(req playwright.Request) {
		failure := ""
		if err := req.Failure(); err != nil {
			failure = err.Error()
		}
		h.activity.RequestFailed(req.Method(), req.URL(), failure)
	})
	page.OnResponse(func(resp playwright.Response) {
		h.activity.Response(resp.Status(), resp.Request().Method(), resp.URL())
	})

	log.Printf("Navigating to: %s", h.cfg.URL)
	if _, err := page.Goto(h.cfg.URL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(h.cfg.Timeouts.PageLoadMS)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("goto %s: %w", h.cfg.URL, err)
	}

	if err := page.Locator(h.cfg.Selectors.Card).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(h.cfg.Timeouts.CardWaitMS)),
	}); err != nil {
		log.Printf("Cards not visible yet (continuing): %v", err)
	}
	page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(filepath.Join(h.siteDir(), "screens", "00_loaded.png")),
	})

	h.initialized = true
	return nil
}

// findSubtabs looks for LTE/5G subtab buttons inside the visible tab panel,
// falling back to a page-wide scan.
func (h *BrowserHandler) findSubtabs() []string {
	page := h.page

	btns := page.Locator("[role='tabpanel']:not([aria-hidden='true']) " + h.cfg.Selectors.TabButton)
	if n, _ := btns.Count(); n == 0 {
		btns = page.Locator(h.cfg.Selectors.TabButton)
	}

	var subtabs []string
	count, _ := btns.Count()
	for i := 0; i < count; i++ {
		txt, err := btns.Nth(i).InnerText()
		if err != nil {
			continue
		}
		txt = strings.TrimSpace(txt)
		for _, key := range h.cfg.SubtabKeywords {
			if strings.Contains(txt, key) {
				found := false
				for _, s := range subtabs {
					if s == txt {
						found = true
						break
					}
				}
				if !found {
					subtabs = append(subtabs, txt)
				}
				break
			}
		}
	}
	return subtabs
}

func (h *BrowserHandler) collectCards(ctx context.Context, tab, subtab string, result *TabResult) error {
	page := h.page

	h.expandAccordions()
	h.clickShowMore()
	h.scrollLazyCards()

	cards := page.Locator(h.cfg.Selectors.Card)
	n, err := cards.Count()
	if err != nil {
		return fmt.Errorf("count cards: %w", err)
	}
	log.Printf("Tab %q / %q: %d cards", tab, subtab, n)
	result.CardsFound += n

	takeN := n
	if h.opts.MaxPerTab > 0 && takeN > h.opts.MaxPerTab {
		takeN = h.opts.MaxPerTab
	}

	for i := 0; i < takeN; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		plan, err := h.captureCard(tab, subtab, i, cards.Nth(i))
		if err != nil {
			log.Printf("Card #%d/%d: %v", i+1, takeN, err)
			result.CardsSkipped++
			continue
		}
		if plan == nil {
			result.CardsSkipped++
			continue
		}

		result.Plans = append(result.Plans, *plan)
		time.Sleep(h.opts.RequestInterval)
	}

	return nil
}

// captureCard opens the card's detail modal, captures HTML and a screenshot,
// and parses the plan out of it. Returns (nil, nil) when the card has no
// usable modalProduct trigger.
func (h *BrowserHandler) captureCard(tab, subtab string, index int, card playwright.Locator) (*models.RawPlan, error) {
	page := h.page
	modalID := h.cfg.Selectors.ModalTarget

	var listTitle string
	title := card.Locator(h.cfg.Selectors.CardTitle).First()
	if n, _ := title.Count(); n > 0 {
		if txt, err := title.InnerText(); err == nil {
			listTitle = norm(txt)
		}
	}

	var triggers []playwright.Locator
	for _, sel := range []string{
		fmt.Sprintf("a[data-dialog-target*='%s']", modalID),
		fmt.Sprintf("a[data-dialog-trigger*='%s']", modalID),
		fmt.Sprintf("button[data-dialog-target*='%s']", modalID),
		fmt.Sprintf("button[data-dialog-trigger*='%s']", modalID),
	} {
		loc := card.Locator(sel)
		if n, _ := loc.Count(); n > 0 {
			triggers = append(triggers, loc.First())
		}
	}
	if len(triggers) == 0 {
		log.Printf("Card #%d: no detail modal trigger (%s), skipping", index+1, modalID)
		return nil, nil
	}

	h.closeAllModals()
	h.disableBlockingUI()

	for _, trigger := range triggers {
		target, _ := trigger.GetAttribute("data-dialog-target")
		if target == "" {
			target, _ = trigger.GetAttribute("data-dialog-trigger")
		}
		if target == "" {
			target = modalID
		}
		if !strings.HasPrefix(target, "#") {
			target = "#" + target
		}

		modal, err := h.clickAndWaitModal(trigger, target)
		if err != nil {
			log.Printf("Card #%d: modal open failed: %v", index+1, err)
			h.closeAllModals()
			continue
		}

		// another modal (ARS, compare tray) stole the click: close and retry
		if rootID, _ := modal.First().GetAttribute("id"); rootID != "" && rootID != modalID {
			log.Printf("Card #%d: unexpected modal %q, closing", index+1, rootID)
			h.closeAllModals()
			continue
		}

		h.expandModalContent(modal)

		var html string
		content := modal.Locator(h.cfg.Selectors.ModalContent)
		if n, _ := content.Count(); n > 0 {
			html, err = content.First().InnerHTML()
		} else {
			html, err = modal.InnerHTML()
		}
		if err != nil || html == "" {
			log.Printf("Card #%d: could not read modal html: %v", index+1, err)
			h.closeAllModals()
			continue
		}

		baseName := listTitle
		if baseName == "" {
			baseName = fmt.Sprintf("%s_%s_%03d", tab, orDefault(subtab, "default"), index+1)
		}
		baseName = safeFilename(baseName)

		pngPath := filepath.Join(h.siteDir(), "modals", baseName+".png")
		if _, err := modal.Screenshot(playwright.LocatorScreenshotOptions{
			Path: playwright.String(pngPath),
		}); err != nil {
			pngPath = filepath.Join(h.siteDir(), "screens", baseName+"_page.png")
			page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(pngPath)})
		}

		htmlPath := filepath.Join(h.siteDir(), "html", baseName+".html")
		if err := os.WriteFile(htmlPath, []byte(html), 0644); err != nil {
			htmlPath = filepath.Join(h.siteDir(), "html", fmt.Sprintf("%s_%d.html", baseName, time.Now().Unix()))
			if err := os.WriteFile(htmlPath, []byte(html), 0644); err != nil {
				log.Printf("Card #%d: could not save modal html: %v", index+1, err)
			}
		}

		fields, err := ParseModalFields(html)
		if err != nil {
			h.closeAllModals()
			return nil, fmt.Errorf("parse modal: %w", err)
		}
		extras, err := ParseModalExtras(html)
		if err != nil {
			h.closeAllModals()
			return nil, fmt.Errorf("parse modal extras: %w", err)
		}

		plan := &models.RawPlan{
			Site:           h.cfg.ID,
			TabName:        tab,
			SubtabName:     subtab,
			CardIndex:      index + 1,
			ListTitle:      listTitle,
			ModalTitle:     fields.Title,
			PriceText:      fields.PriceText,
			Price:          fields.Price,
			SpeedTopList:   fields.SpeedTopList,
			SpeedDataGuide: fields.SpeedDataGuide,
			HTMLPath:       htmlPath,
			ScreenshotPath: pngPath,
			TextAll:        extras.TextAll,
			SectionsJSON:   extras.SectionsJSON,
			DLJSON:         extras.DLJSON,
			TablesJSON:     extras.TablesJSON,
			LinksJSON:      extras.LinksJSON,
			BulletsJSON:    extras.BulletsJSON,
			ScrapedAt:      time.Now(),
		}

		h.closeAllModals()
		return plan, nil
	}

	log.Printf("Card #%d: %s capture failed on every trigger", index+1, modalID)
	return nil, nil
}

// Close stops tracing (writing trace.zip when enabled) and tears the
// browser session down.
func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.context != nil {
		if h.opts.Trace {
			path := filepath.Join(h.siteDir(), "trace.zip")
			if err := h.context.Tracing().Stop(path); err != nil {
				log.Printf("Warning: could not save trace: %v", err)
			} else {
				h.tracePath = path
				log.Printf("Trace saved: %s (playwright show-trace '%s')", path, path)
			}
		}
		h.context.Close()
		h.context = nil
	}
	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	if h.activity != nil {
		h.activity.Close()
		h.activity = nil
	}
	h.page = nil
	h.initialized = false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
