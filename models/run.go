package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID           int64      `json:"id" db:"id"`
	SiteID       string     `json:"site_id" db:"site_id"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	CardsFound   int        `json:"cards_found" db:"cards_found"`
	PlansFound   int        `json:"plans_found" db:"plans_found"`
	PlansNew     int        `json:"plans_new" db:"plans_new"`
	PriceChanges int        `json:"price_changes" db:"price_changes"`
	CardsSkipped int        `json:"cards_skipped" db:"cards_skipped"`
	ErrorsCount  int        `json:"errors_count" db:"errors_count"`
}

type SiteStats struct {
	SiteID            string     `json:"site_id" db:"site_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalPlans        int        `json:"total_plans" db:"total_plans"`
	TotalCaptures     int        `json:"total_captures" db:"total_captures"`
	PlansSynced       int        `json:"plans_synced" db:"plans_synced"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
	LastCheckAt       *time.Time `json:"last_check_at" db:"last_check_at"`
	LastCheckStatus   int        `json:"last_check_status" db:"last_check_status"`
}
