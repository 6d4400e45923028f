package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DomainPlan is the permanent (Postgres) record of a rate plan, keyed by
// fingerprint so the same plan is recognized across runs and tab moves.
type DomainPlan struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	Site        string          `json:"site" db:"site"`
	TabName     string          `json:"tab_name" db:"tab_name"`
	SubtabName  string          `json:"subtab_name" db:"subtab_name"`
	Network     string          `json:"network" db:"network"` // LTE, 5G
	Title       string          `json:"title" db:"title"`
	Price       *int            `json:"price" db:"price"`
	PriceText   string          `json:"price_text" db:"price_text"`
	SpeedNotes  string          `json:"speed_notes" db:"speed_notes"`
	Details     json.RawMessage `json:"details" db:"details"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// DomainPlanSnapshot is one capture of a plan as seen on the page.
type DomainPlanSnapshot struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	PlanID         uuid.UUID       `json:"plan_id" db:"plan_id"`
	Source         string          `json:"source" db:"source"`
	TabName        string          `json:"tab_name" db:"tab_name"`
	SubtabName     string          `json:"subtab_name" db:"subtab_name"`
	Title          string          `json:"title" db:"title"`
	Price          *int            `json:"price" db:"price"`
	PriceText      string          `json:"price_text" db:"price_text"`
	SpeedTopList   string          `json:"speed_toplist" db:"speed_toplist"`
	SpeedDataGuide string          `json:"speed_dataguide" db:"speed_dataguide"`
	RawData        json.RawMessage `json:"raw_data" db:"raw_data"`
	ScrapedAt      time.Time       `json:"scraped_at" db:"scraped_at"`
	RunID          *int64          `json:"run_id" db:"run_id"`
}

// PlanEvent is a timeline event for a plan (first seen, price change, removal).
type PlanEvent struct {
	ID            int64     `json:"id" db:"id"`
	PlanID        uuid.UUID `json:"plan_id" db:"plan_id"`
	EventType     string    `json:"event_type" db:"event_type"`
	EventDate     time.Time `json:"event_date" db:"event_date"`
	Price         *int      `json:"price" db:"price"`
	PreviousPrice *int      `json:"previous_price" db:"previous_price"`
	Summary       string    `json:"summary" db:"summary"`
	Source        string    `json:"source" db:"source"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// DomainScrapeRun is a scrape execution record in Postgres.
type DomainScrapeRun struct {
	ID           int64           `json:"id" db:"id"`
	Source       string          `json:"source" db:"source"`
	StartedAt    time.Time       `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at" db:"finished_at"`
	Status       string          `json:"status" db:"status"` // running, completed, failed
	PlansFound   int             `json:"plans_found" db:"plans_found"`
	PlansNew     int             `json:"plans_new" db:"plans_new"`
	PriceChanges int             `json:"price_changes" db:"price_changes"`
	ErrorsCount  int             `json:"errors_count" db:"errors_count"`
	ErrorMessage string          `json:"error_message" db:"error_message"`
	Metadata     json.RawMessage `json:"metadata" db:"metadata"`
}

// Event types
const (
	EventTypePlanListed  = "plan_listed"
	EventTypePlanRemoved = "plan_removed"
	EventTypePriceChange = "price_change"
)
