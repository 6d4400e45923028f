package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	site := &SiteConfig{ID: "ktmmobile"}
	site.applyDefaults()

	if site.URL != "https://www.ktmmobile.com/rate/rateList.do" {
		t.Fatalf("unexpected default url %q", site.URL)
	}
	if len(site.Tabs) != 3 {
		t.Fatalf("expected 3 default tabs, got %v", site.Tabs)
	}
	if site.Selectors.Card != "li.rate-content__item" {
		t.Fatalf("unexpected card selector %q", site.Selectors.Card)
	}
	if site.Timeouts.ModalOpenMS != 10000 {
		t.Fatalf("expected 10s modal open timeout, got %dms", site.Timeouts.ModalOpenMS)
	}
	if site.Timeouts.ModalCloseMS != 2500 {
		t.Fatalf("expected 2.5s modal close timeout, got %dms", site.Timeouts.ModalCloseMS)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	site := &SiteConfig{
		ID:       "other",
		URL:      "https://example.com/plans",
		Tabs:     []string{"tab-a"},
		Timeouts: Timeouts{ModalOpenMS: 5000},
	}
	site.applyDefaults()

	if site.URL != "https://example.com/plans" {
		t.Fatalf("url overwritten: %q", site.URL)
	}
	if len(site.Tabs) != 1 || site.Tabs[0] != "tab-a" {
		t.Fatalf("tabs overwritten: %v", site.Tabs)
	}
	if site.Timeouts.ModalOpenMS != 5000 {
		t.Fatalf("timeout overwritten: %d", site.Timeouts.ModalOpenMS)
	}
}

func TestRequestIntervalFromEnv(t *testing.T) {
	t.Setenv("REQUEST_INTERVAL_SEC", "0.5")

	got := time.Duration(getEnvFloat("REQUEST_INTERVAL_SEC", 0.35) * float64(time.Second))
	if got != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %s", got)
	}
}
