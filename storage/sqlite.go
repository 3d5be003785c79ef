package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"realestate_ai/models"
)

// SQLiteStore is the local operational ledger: runs, run logs, per-site
// stats and the command queue.
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
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		site_id TEXT,
		kind TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		pages_visited INTEGER DEFAULT 0,
		listings_found INTEGER DEFAULT 0,
		html_saved INTEGER DEFAULT 0,
		listings_new INTEGER DEFAULT 0,
		listings_skipped INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		component TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_runs INTEGER DEFAULT 0,
		total_listings_new INTEGER DEFAULT 0,
		success_rate REAL DEFAULT 0,
		avg_run_duration_sec INTEGER DEFAULT 0,
		scrape_resume_page INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scrape_runs (site_id, kind, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.SiteID, run.Kind, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, pages_visited = ?, listings_found = ?,
			html_saved = ?, listings_new = ?, listings_skipped = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesVisited, run.ListingsFound,
		run.HTMLSaved, run.ListingsNew, run.ListingsSkipped, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) RecentRuns(limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.Query(`
		SELECT id, site_id, kind, started_at, finished_at, status, pages_visited, listings_found,
			html_saved, listings_new, listings_skipped, errors_count
		FROM scrape_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var r models.ScrapeRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.SiteID, &r.Kind, &r.StartedAt, &finished, &r.Status,
			&r.PagesVisited, &r.ListingsFound, &r.HTMLSaved, &r.ListingsNew, &r.ListingsSkipped, &r.ErrorsCount); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// Logs
// =============================================================================

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, component, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, component, message, site_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, time.Now(), level, component, message, siteID)
	return err
}

func (s *SQLiteStore) RunLogs(runID int64) ([]models.ScrapeLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, component, message, site_id
		FROM scrape_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		var component, siteID sql.NullString
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &component, &l.Message, &siteID); err != nil {
			return nil, err
		}
		l.Component = component.String
		l.SiteID = siteID.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// =============================================================================
// Site Stats
// =============================================================================

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_runs,
			total_listings_new, success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM scrape_runs WHERE site_id = ?),
			(SELECT COALESCE(SUM(listings_new), 0) FROM scrape_runs WHERE site_id = ?),
			(SELECT COALESCE(CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0), 0) FROM scrape_runs WHERE site_id = ?),
			(SELECT CAST(COALESCE(AVG((julianday(finished_at) - julianday(started_at)) * 86400), 0) AS INTEGER)
				FROM scrape_runs WHERE site_id = ? AND finished_at IS NOT NULL)
		WHERE true
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_runs = excluded.total_runs,
			total_listings_new = excluded.total_listings_new,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		siteID, siteID, siteID, siteID, siteID, siteID, siteID)
	return err
}

func (s *SQLiteStore) GetSiteStats(siteID string) (*models.SiteStats, error) {
	var st models.SiteStats
	var lastRun sql.NullTime
	var lastStatus sql.NullString
	err := s.db.QueryRow(`
		SELECT site_id, last_run_at, last_run_status, total_runs, total_listings_new,
			success_rate, avg_run_duration_sec
		FROM site_stats WHERE site_id = ?`, siteID).Scan(
		&st.SiteID, &lastRun, &lastStatus, &st.TotalRuns, &st.TotalListingsNew,
		&st.SuccessRate, &st.AvgRunDurationSec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		st.LastRunAt = &lastRun.Time
	}
	st.LastRunStatus = lastStatus.String
	return &st, nil
}

func (s *SQLiteStore) GetResumePage(siteID string) (int, error) {
	var page int
	err := s.db.QueryRow(`
		SELECT COALESCE(scrape_resume_page, 0) FROM site_stats WHERE site_id = ?`, siteID).Scan(&page)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return page, err
}

func (s *SQLiteStore) SetResumePage(siteID string, page int) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, scrape_resume_page)
		VALUES (?, ?)
		ON CONFLICT(site_id) DO UPDATE SET scrape_resume_page = excluded.scrape_resume_page`, siteID, page)
	return err
}

func (s *SQLiteStore) ClearResumePage(siteID string) error {
	_, err := s.db.Exec(`UPDATE site_stats SET scrape_resume_page = 0 WHERE site_id = ?`, siteID)
	return err
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	var raw any
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return 0, err
		}
		raw = string(data)
	}
	result, err := s.db.Exec(`
		INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, raw, time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		var processed sql.NullTime
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &processed); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}
