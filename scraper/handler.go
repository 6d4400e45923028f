package scraper

import (
	"context"

	"ktm_scrooper/config"
)

type Handler interface {
	ID() string
	Scrape(ctx context.Context, tab string) (*TabResult, error)
	Close()
}

func NewHandler(siteCfg *config.SiteConfig, opts config.ScraperConfig, outDir string) Handler {
	switch siteCfg.Handler {
	case "browser":
		return NewBrowserHandler(siteCfg, opts, outDir)
	default:
		return NewBrowserHandler(siteCfg, opts, outDir)
	}
}
