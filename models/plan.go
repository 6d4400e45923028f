package models

import (
	"encoding/json"
	"time"
)

// RawPlan is everything captured from a single rate-plan detail modal.
type RawPlan struct {
	Site           string          `json:"site"`
	TabName        string          `json:"tab_name"`
	SubtabName     string          `json:"subtab_name"`
	CardIndex      int             `json:"card_index"`
	ListTitle      string          `json:"list_title"`
	ModalTitle     string          `json:"modal_title"`
	PriceText      string          `json:"price_text"`
	Price          int             `json:"price"`
	SpeedTopList   string          `json:"speed_toplist"`
	SpeedDataGuide string          `json:"speed_dataguide"`
	HTMLPath       string          `json:"html_path"`
	ScreenshotPath string          `json:"screenshot_path"`
	TextAll        string          `json:"text_all"`
	SectionsJSON   json.RawMessage `json:"sections_json"`
	DLJSON         json.RawMessage `json:"dl_json"`
	TablesJSON     json.RawMessage `json:"tables_json"`
	LinksJSON      json.RawMessage `json:"links_json"`
	BulletsJSON    json.RawMessage `json:"bullets_json"`
	ScrapedAt      time.Time       `json:"scraped_at"`
}

// Plan is the operational (SQLite) record of a known rate plan.
type Plan struct {
	ID          string    `json:"id" db:"id"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	Site        string    `json:"site" db:"site"`
	TabName     string    `json:"tab_name" db:"tab_name"`
	SubtabName  string    `json:"subtab_name" db:"subtab_name"`
	Title       string    `json:"title" db:"title"`
	Price       int       `json:"price" db:"price"`
	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" db:"last_seen_at"`
	TimesSeen   int       `json:"times_seen" db:"times_seen"`
	Synced      bool      `json:"synced" db:"synced"`
	IsActive    bool      `json:"is_active" db:"is_active"`
}

// PlanCapture is one scrape of one plan, tied to a run and its artifacts.
type PlanCapture struct {
	ID             int64           `json:"id" db:"id"`
	PlanID         string          `json:"plan_id" db:"plan_id"`
	Site           string          `json:"site" db:"site"`
	TabName        string          `json:"tab_name" db:"tab_name"`
	SubtabName     string          `json:"subtab_name" db:"subtab_name"`
	Title          string          `json:"title" db:"title"`
	PriceText      string          `json:"price_text" db:"price_text"`
	Price          int             `json:"price" db:"price"`
	SpeedTopList   string          `json:"speed_toplist" db:"speed_toplist"`
	SpeedDataGuide string          `json:"speed_dataguide" db:"speed_dataguide"`
	HTMLPath       string          `json:"html_path" db:"html_path"`
	ScreenshotPath string          `json:"screenshot_path" db:"screenshot_path"`
	Extras         json.RawMessage `json:"extras" db:"extras"`
	ScrapedAt      time.Time       `json:"scraped_at" db:"scraped_at"`
	RunID          int64           `json:"run_id" db:"run_id"`
}

// Artifact is a file produced during a capture, queued for upload.
type Artifact struct {
	ID         int64      `json:"id" db:"id"`
	RunID      *int64     `json:"run_id" db:"run_id"`
	Kind       string     `json:"kind" db:"kind"` // html, screenshot, trace, csv
	LocalPath  string     `json:"local_path" db:"local_path"`
	S3Key      string     `json:"s3_key" db:"s3_key"`
	Status     string     `json:"status" db:"status"` // pending, uploaded, failed
	Attempts   int        `json:"attempts" db:"attempts"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UploadedAt *time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// Artifact kinds
const (
	ArtifactKindHTML       = "html"
	ArtifactKindScreenshot = "screenshot"
	ArtifactKindTrace      = "trace"
	ArtifactKindCSV        = "csv"
)

// Artifact status
const (
	ArtifactStatusPending  = "pending"
	ArtifactStatusUploaded = "uploaded"
	ArtifactStatusFailed   = "failed"
)
