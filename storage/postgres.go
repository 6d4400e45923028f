package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"ktm_scrooper/models"
)

// PostgresStore is the long-term plan archive: plans keyed by fingerprint,
// per-run snapshots, and a price/availability event timeline.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Plans
// =============================================================================

func (s *PostgresStore) UpsertPlan(ctx context.Context, p *models.DomainPlan) error {
	query := `
		INSERT INTO plans (
			id, fingerprint, site, tab_name, subtab_name, network, title,
			price, price_text, speed_notes, details, is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (fingerprint) DO UPDATE SET
			tab_name = EXCLUDED.tab_name,
			subtab_name = EXCLUDED.subtab_name,
			network = COALESCE(NULLIF(EXCLUDED.network, ''), plans.network),
			title = EXCLUDED.title,
			price = COALESCE(EXCLUDED.price, plans.price),
			price_text = COALESCE(NULLIF(EXCLUDED.price_text, ''), plans.price_text),
			speed_notes = COALESCE(NULLIF(EXCLUDED.speed_notes, ''), plans.speed_notes),
			details = COALESCE(EXCLUDED.details, plans.details),
			is_active = TRUE,
			updated_at = NOW()
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		p.ID, p.Fingerprint, p.Site, p.TabName, p.SubtabName, p.Network, p.Title,
		p.Price, p.PriceText, p.SpeedNotes, p.Details, p.IsActive, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

func (s *PostgresStore) GetPlanByFingerprint(ctx context.Context, fingerprint string) (*models.DomainPlan, error) {
	query := `
		SELECT id, fingerprint, site, tab_name, subtab_name, network, title,
			price, price_text, speed_notes, details, is_active, created_at, updated_at
		FROM plans WHERE fingerprint = $1`

	var p models.DomainPlan
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(
		&p.ID, &p.Fingerprint, &p.Site, &p.TabName, &p.SubtabName, &p.Network, &p.Title,
		&p.Price, &p.PriceText, &p.SpeedNotes, &p.Details, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPlansInactive deactivates every plan for a site that was NOT seen in
// the given run, and returns the ids it touched.
func (s *PostgresStore) MarkPlansInactive(ctx context.Context, site string, seen []uuid.UUID) ([]uuid.UUID, error) {
	query := `
		UPDATE plans SET is_active = FALSE, updated_at = NOW()
		WHERE site = $1 AND is_active AND NOT (id = ANY($2))
		RETURNING id`

	rows, err := s.pool.Query(ctx, query, site, seen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// Snapshots
// =============================================================================

func (s *PostgresStore) CreateSnapshot(ctx context.Context, snap *models.DomainPlanSnapshot) error {
	query := `
		INSERT INTO plan_snapshots (
			id, plan_id, source, tab_name, subtab_name, title, price, price_text,
			speed_toplist, speed_dataguide, raw_data, scraped_at, run_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		snap.ID, snap.PlanID, snap.Source, snap.TabName, snap.SubtabName, snap.Title,
		snap.Price, snap.PriceText, snap.SpeedTopList, snap.SpeedDataGuide,
		snap.RawData, snap.ScrapedAt, snap.RunID)
	return err
}

func (s *PostgresStore) GetLatestSnapshot(ctx context.Context, planID uuid.UUID) (*models.DomainPlanSnapshot, error) {
	query := `
		SELECT id, plan_id, source, tab_name, subtab_name, title, price, price_text,
			speed_toplist, speed_dataguide, raw_data, scraped_at, run_id
		FROM plan_snapshots WHERE plan_id = $1
		ORDER BY scraped_at DESC LIMIT 1`

	var snap models.DomainPlanSnapshot
	err := s.pool.QueryRow(ctx, query, planID).Scan(
		&snap.ID, &snap.PlanID, &snap.Source, &snap.TabName, &snap.SubtabName, &snap.Title,
		&snap.Price, &snap.PriceText, &snap.SpeedTopList, &snap.SpeedDataGuide,
		&snap.RawData, &snap.ScrapedAt, &snap.RunID,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// =============================================================================
// Events
// =============================================================================

func (s *PostgresStore) CreatePlanEvent(ctx context.Context, e *models.PlanEvent) error {
	query := `
		INSERT INTO plan_events (plan_id, event_type, event_date, price, previous_price, summary, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		e.PlanID, e.EventType, e.EventDate, e.Price, e.PreviousPrice, e.Summary, e.Source, e.CreatedAt,
	).Scan(&e.ID)
}

// =============================================================================
// Scrape runs
// =============================================================================

func (s *PostgresStore) CreateScrapeRun(ctx context.Context, run *models.DomainScrapeRun) error {
	query := `
		INSERT INTO scrape_runs (source, started_at, status)
		VALUES ($1, $2, $3)
		RETURNING id`

	return s.pool.QueryRow(ctx, query, run.Source, run.StartedAt, run.Status).Scan(&run.ID)
}

func (s *PostgresStore) UpdateScrapeRun(ctx context.Context, run *models.DomainScrapeRun) error {
	query := `
		UPDATE scrape_runs SET
			finished_at = $2, status = $3, plans_found = $4, plans_new = $5,
			price_changes = $6, errors_count = $7, error_message = $8, metadata = $9
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.PlansFound, run.PlansNew,
		run.PriceChanges, run.ErrorsCount, run.ErrorMessage, run.Metadata)
	return err
}
