package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"ktm_scrooper/models"
)

// SQLiteStore holds operational data: known plans, per-run captures, run
// history, logs, the command queue, and the artifact upload queue.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		fingerprint TEXT UNIQUE,
		site TEXT,
		tab_name TEXT,
		subtab_name TEXT,
		title TEXT,
		price INTEGER,
		first_seen_at DATETIME,
		last_seen_at DATETIME,
		times_seen INTEGER DEFAULT 1,
		synced BOOLEAN DEFAULT FALSE,
		is_active BOOLEAN DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS plan_captures (
		id INTEGER PRIMARY KEY,
		plan_id TEXT NOT NULL,
		site TEXT NOT NULL,
		tab_name TEXT,
		subtab_name TEXT,
		title TEXT,
		price_text TEXT,
		price INTEGER,
		speed_toplist TEXT,
		speed_dataguide TEXT,
		html_path TEXT,
		screenshot_path TEXT,
		extras JSON,
		scraped_at DATETIME,
		run_id INTEGER,
		FOREIGN KEY (plan_id) REFERENCES plans(id)
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		cards_found INTEGER,
		plans_found INTEGER,
		plans_new INTEGER,
		price_changes INTEGER,
		cards_skipped INTEGER,
		errors_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_plans INTEGER,
		total_captures INTEGER,
		plans_synced INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER,
		last_check_at DATETIME,
		last_check_status INTEGER
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		kind TEXT,
		local_path TEXT,
		s3_key TEXT,
		status TEXT DEFAULT 'pending',
		attempts INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		uploaded_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_plans_fingerprint ON plans(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_captures_plan ON plan_captures(plan_id, scraped_at);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_artifacts_pending ON artifacts(status) WHERE status = 'pending';
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) GetPlanByFingerprint(fingerprint string) (*models.Plan, error) {
	row := s.db.QueryRow(`
		SELECT id, fingerprint, site, tab_name, subtab_name, title, price,
			first_seen_at, last_seen_at, times_seen, synced, COALESCE(is_active, TRUE)
		FROM plans WHERE fingerprint = ?`, fingerprint)

	var p models.Plan
	err := row.Scan(&p.ID, &p.Fingerprint, &p.Site, &p.TabName, &p.SubtabName, &p.Title,
		&p.Price, &p.FirstSeenAt, &p.LastSeenAt, &p.TimesSeen, &p.Synced, &p.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertPlan(p *models.Plan) error {
	_, err := s.db.Exec(`
		INSERT INTO plans (id, fingerprint, site, tab_name, subtab_name, title, price,
			first_seen_at, last_seen_at, times_seen, synced, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE)
		ON CONFLICT(fingerprint) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			times_seen = excluded.times_seen,
			price = excluded.price,
			tab_name = excluded.tab_name,
			subtab_name = excluded.subtab_name,
			synced = FALSE,
			is_active = TRUE`,
		p.ID, p.Fingerprint, p.Site, p.TabName, p.SubtabName, p.Title, p.Price,
		p.FirstSeenAt, p.LastSeenAt, p.TimesSeen, p.Synced)
	return err
}

func (s *SQLiteStore) CreateCapture(c *models.PlanCapture) error {
	_, err := s.db.Exec(`
		INSERT INTO plan_captures (plan_id, site, tab_name, subtab_name, title, price_text,
			price, speed_toplist, speed_dataguide, html_path, screenshot_path, extras, scraped_at, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.PlanID, c.Site, c.TabName, c.SubtabName, c.Title, c.PriceText,
		c.Price, c.SpeedTopList, c.SpeedDataGuide, c.HTMLPath, c.ScreenshotPath,
		string(c.Extras), c.ScrapedAt, c.RunID)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO scrape_runs (site_id, started_at, status, cards_found, plans_found,
			plans_new, price_changes, cards_skipped, errors_count)
		VALUES (?, ?, ?, 0, 0, 0, 0, 0, 0)`,
		run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, cards_found = ?,
			plans_found = ?, plans_new = ?, price_changes = ?, cards_skipped = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.CardsFound, run.PlansFound, run.PlansNew,
		run.PriceChanges, run.CardsSkipped, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) GetLastRunTime(siteID string) (time.Time, error) {
	row := s.db.QueryRow(`SELECT COALESCE(MAX(started_at), '1970-01-01') FROM scrape_runs WHERE site_id = ?`, siteID)
	var t time.Time
	if err := row.Scan(&t); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, siteID)
	return err
}

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_plans, total_captures, plans_synced, success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM plans WHERE site = ?),
			(SELECT COUNT(*) FROM plan_captures WHERE site = ?),
			(SELECT COUNT(*) FROM plans WHERE site = ? AND synced),
			(SELECT AVG(CASE WHEN status = 'completed' THEN 1.0 ELSE 0.0 END) FROM scrape_runs WHERE site_id = ?),
			(SELECT AVG(CAST(strftime('%s', finished_at) AS INTEGER) - CAST(strftime('%s', started_at) AS INTEGER))
				FROM scrape_runs WHERE site_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_plans = excluded.total_plans,
			total_captures = excluded.total_captures,
			plans_synced = excluded.plans_synced,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		siteID, siteID, siteID, siteID, siteID, siteID, siteID, siteID)
	return err
}

// TouchSiteCheck records the latest availability probe for a site.
func (s *SQLiteStore) TouchSiteCheck(siteID string, status int, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_check_at, last_check_status)
		VALUES (?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			last_check_at = excluded.last_check_at,
			last_check_status = excluded.last_check_status`,
		siteID, at, status)
	return err
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params json.RawMessage) error {
	_, err := s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, cmd, string(params))
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, COALESCE(params, '{}'), created_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params string
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		cmd.Params = json.RawMessage(params)
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	params := &models.CommandParams{}
	if len(cmd.Params) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(cmd.Params, params); err != nil {
		return nil, fmt.Errorf("parse command params: %w", err)
	}
	return params, nil
}

// =============================================================================
// Artifact queue
// =============================================================================

func (s *SQLiteStore) QueueArtifact(runID *int64, kind, localPath string) error {
	_, err := s.db.Exec(`
		INSERT INTO artifacts (run_id, kind, local_path, status) VALUES (?, ?, ?, 'pending')`,
		runID, kind, localPath)
	return err
}

// ClaimPendingArtifacts returns up to limit pending artifacts, bumping their
// attempt counter so repeated failures eventually stop being retried.
func (s *SQLiteStore) ClaimPendingArtifacts(limit, maxAttempts int) ([]models.Artifact, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, kind, local_path, COALESCE(s3_key, ''), status, attempts, created_at
		FROM artifacts
		WHERE status = 'pending' AND attempts < ?
		ORDER BY created_at LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var arts []models.Artifact
	for rows.Next() {
		var a models.Artifact
		if err := rows.Scan(&a.ID, &a.RunID, &a.Kind, &a.LocalPath, &a.S3Key, &a.Status, &a.Attempts, &a.CreatedAt); err != nil {
			return nil, err
		}
		arts = append(arts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, a := range arts {
		s.db.Exec(`UPDATE artifacts SET attempts = attempts + 1 WHERE id = ?`, a.ID)
	}
	return arts, nil
}

func (s *SQLiteStore) MarkArtifactUploaded(id int64, s3Key string) error {
	_, err := s.db.Exec(`
		UPDATE artifacts SET status = 'uploaded', s3_key = ?, uploaded_at = ? WHERE id = ?`,
		s3Key, time.Now(), id)
	return err
}

func (s *SQLiteStore) MarkArtifactFailed(id int64) error {
	_, err := s.db.Exec(`UPDATE artifacts SET status = 'failed' WHERE id = ?`, id)
	return err
}
