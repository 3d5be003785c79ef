package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"realestate_ai/models"
)

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

// EnsureSchema creates the bronze and html_files tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings_bronze (
		id BIGSERIAL PRIMARY KEY,
		source VARCHAR(32) NOT NULL,
		ad_id BIGINT NOT NULL,
		url TEXT,
		status VARCHAR(32),
		created_at TIMESTAMPTZ,
		modified_at TIMESTAMPTZ,
		pushed_up_at TIMESTAMPTZ,
		payload JSONB NOT NULL,
		ingested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (source, ad_id)
	);

	CREATE INDEX IF NOT EXISTS idx_listings_bronze_status ON listings_bronze(status);
	CREATE INDEX IF NOT EXISTS idx_listings_bronze_modified ON listings_bronze(modified_at);

	CREATE TABLE IF NOT EXISTS html_files (
		id BIGSERIAL PRIMARY KEY,
		offer_id TEXT NOT NULL,
		url TEXT NOT NULL,
		minio_key TEXT NOT NULL UNIQUE,
		scraped_at TIMESTAMPTZ NOT NULL,
		ad_id BIGINT,
		processed_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_html_files_offer ON html_files(offer_id);
	CREATE INDEX IF NOT EXISTS idx_html_files_pending ON html_files(processed_at) WHERE processed_at IS NULL;
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// =============================================================================
// Bronze Listings
// =============================================================================

// UpsertBronze inserts the listing or merges it into the existing
// (source, ad_id) row. Payload, url and status follow the newest parse;
// created_at keeps the first known value; modified_at and pushed_up_at only
// move forward (GREATEST skips NULLs).
func (s *PostgresStore) UpsertBronze(ctx context.Context, b *models.BronzeListing) error {
	query := `
		INSERT INTO listings_bronze (
			source, ad_id, url, status, created_at, modified_at, pushed_up_at, payload, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (source, ad_id) DO UPDATE SET
			url = EXCLUDED.url,
			status = EXCLUDED.status,
			created_at = COALESCE(EXCLUDED.created_at, listings_bronze.created_at),
			modified_at = GREATEST(listings_bronze.modified_at, EXCLUDED.modified_at),
			pushed_up_at = GREATEST(listings_bronze.pushed_up_at, EXCLUDED.pushed_up_at),
			payload = EXCLUDED.payload,
			ingested_at = NOW()
		RETURNING id, ingested_at`

	return s.pool.QueryRow(ctx, query,
		b.Source, b.AdID, b.URL, b.Status, b.CreatedAt, b.ModifiedAt, b.PushedUpAt, []byte(b.Payload),
	).Scan(&b.ID, &b.IngestedAt)
}

var bronzeColumnList = []string{
	"id", "source", "ad_id", "url", "status", "created_at", "modified_at", "pushed_up_at", "payload", "ingested_at",
}

var bronzeColumns = strings.Join(bronzeColumnList, ", ")

func scanBronze(row pgx.Row) (*models.BronzeListing, error) {
	var b models.BronzeListing
	var payload []byte
	if err := row.Scan(
		&b.ID, &b.Source, &b.AdID, &b.URL, &b.Status,
		&b.CreatedAt, &b.ModifiedAt, &b.PushedUpAt, &payload, &b.IngestedAt,
	); err != nil {
		return nil, err
	}
	b.Payload = payload
	return &b, nil
}

func (s *PostgresStore) GetBronzeByID(ctx context.Context, id int64) (*models.BronzeListing, error) {
	query := `SELECT ` + bronzeColumns + ` FROM listings_bronze WHERE id = $1`

	b, err := scanBronze(s.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// LoadBronze returns rows matching the filter, newest first.
func (s *PostgresStore) LoadBronze(ctx context.Context, f models.BronzeFilter) ([]*models.BronzeListing, error) {
	query, args := bronzeQuery(f)
	return s.queryBronze(ctx, query, args...)
}

func bronzeQuery(f models.BronzeFilter) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(bronzeColumnList...)
	sb.From("listings_bronze")

	var where []string
	if f.Source != "" {
		where = append(where, sb.Equal("source", strings.ToLower(f.Source)))
	}
	if f.AdID > 0 {
		where = append(where, sb.Equal("ad_id", f.AdID))
	}
	if f.Status != "" {
		where = append(where, sb.Equal("status", strings.ToLower(f.Status)))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("ingested_at DESC", "id DESC")
	if f.Limit > 0 {
		sb.Limit(f.Limit)
	}
	return sb.Build()
}

// LoadAllBronze returns the whole bronze table in id order.
func (s *PostgresStore) LoadAllBronze(ctx context.Context) ([]*models.BronzeListing, error) {
	return s.queryBronze(ctx, `SELECT `+bronzeColumns+` FROM listings_bronze ORDER BY id`)
}

func (s *PostgresStore) queryBronze(ctx context.Context, query string, args ...any) ([]*models.BronzeListing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*models.BronzeListing
	for rows.Next() {
		b, err := scanBronze(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, b)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) BronzeExists(ctx context.Context, source string, adID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM listings_bronze WHERE source = $1 AND ad_id = $2)`,
		strings.ToLower(source), adID,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) CountBronze(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings_bronze`).Scan(&n)
	return n, err
}

// =============================================================================
// HTML Files
// =============================================================================

func (s *PostgresStore) InsertHTMLFile(ctx context.Context, f *models.HTMLFile) error {
	query := `
		INSERT INTO html_files (offer_id, url, minio_key, scraped_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (minio_key) DO UPDATE SET scraped_at = EXCLUDED.scraped_at
		RETURNING id`

	return s.pool.QueryRow(ctx, query, f.OfferID, f.URL, f.MinioKey, f.ScrapedAt).Scan(&f.ID)
}

// MarkHTMLFileProcessed links a stored page to the bronze ad it produced.
// adID is nil when the page carried no usable listing.
func (s *PostgresStore) MarkHTMLFileProcessed(ctx context.Context, id int64, adID *int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE html_files SET ad_id = $2, processed_at = NOW() WHERE id = $1`,
		id, adID,
	)
	return err
}

// PendingHTMLFiles returns stored pages that were never parsed into bronze,
// oldest first.
func (s *PostgresStore) PendingHTMLFiles(ctx context.Context, limit int) ([]models.HTMLFile, error) {
	query := `
		SELECT id, offer_id, url, minio_key, scraped_at
		FROM html_files
		WHERE processed_at IS NULL
		ORDER BY scraped_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.HTMLFile
	for rows.Next() {
		var f models.HTMLFile
		if err := rows.Scan(&f.ID, &f.OfferID, &f.URL, &f.MinioKey, &f.ScrapedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
