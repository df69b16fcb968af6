// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kite/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveCriterion stores a criterion with tenant isolation. Saving an
// existing ID updates it in place.
func (r *SQLRepository) SaveCriterion(ctx context.Context, tenantID string, c *domain.Criterion) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: criterion ID is required", ErrInvalidInput)
	}

	intervals, _ := json.Marshal(c.Intervals)

	enabled := 0
	if c.Enabled {
		enabled = 1
	}
	lowerIsBetter := 0
	if c.LowerIsBetter {
		lowerIsBetter = 1
	}

	now := time.Now().UTC()
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO criteria (
			id, tenant_id, metric_name, weight, intervals, min_value,
			expression, lower_is_better, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			metric_name = excluded.metric_name,
			weight = excluded.weight,
			intervals = excluded.intervals,
			min_value = excluded.min_value,
			expression = excluded.expression,
			lower_is_better = excluded.lower_is_better,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, tenantID, c.MetricName, c.Weight, string(intervals), c.HardMin,
		c.Expression, lowerIsBetter, enabled,
		createdAt, now,
	)
	return err
}

// GetCriterion retrieves an active criterion by ID with tenant isolation.
func (r *SQLRepository) GetCriterion(ctx context.Context, tenantID string, criterionID string) (*domain.Criterion, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, metric_name, weight, intervals, min_value,
			   expression, lower_is_better, enabled, created_at, updated_at
		FROM criteria
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	c, err := r.scanCriterion(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, criterionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListCriteria retrieves all active criteria for a tenant, ordered by
// metric name for stable output.
func (r *SQLRepository) ListCriteria(ctx context.Context, tenantID string) ([]*domain.Criterion, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, metric_name, weight, intervals, min_value,
			   expression, lower_is_better, enabled, created_at, updated_at
		FROM criteria
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY metric_name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var criteria []*domain.Criterion
	for rows.Next() {
		c, err := r.scanCriterion(rows)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, c)
	}

	return criteria, rows.Err()
}

// DeleteCriterion soft-deletes a criterion by setting enabled = 0.
func (r *SQLRepository) DeleteCriterion(ctx context.Context, tenantID string, criterionID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE criteria
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, criterionID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanCriterion(row scanner) (*domain.Criterion, error) {
	var c domain.Criterion
	var intervals string
	var minValue, expression sql.NullString
	var lowerIsBetter, enabled int

	if err := row.Scan(
		&c.ID, &c.TenantID, &c.MetricName, &c.Weight, &intervals, &minValue,
		&expression, &lowerIsBetter, &enabled,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	c.HardMin = minValue.String
	c.Expression = expression.String
	c.LowerIsBetter = lowerIsBetter == 1
	c.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(intervals), &c.Intervals); err != nil {
		return nil, fmt.Errorf("failed to parse intervals for %s: %w", c.ID, err)
	}

	return &c, nil
}

// SaveAnalysis stores an analysis result with tenant isolation.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, tenantID string, analysis *domain.Analysis) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	results, _ := json.Marshal(analysis.Results)
	summary, _ := json.Marshal(analysis.Summary)

	query := `
		INSERT INTO analyses (id, tenant_id, results, summary, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		analysis.ID, tenantID, string(results), string(summary), analysis.CreatedAt,
	)
	return err
}

// GetAnalysis retrieves an analysis by ID with tenant isolation.
func (r *SQLRepository) GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, results, summary, created_at
		FROM analyses
		WHERE tenant_id = ? AND id = ?
	`

	a, err := r.scanAnalysis(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, analysisID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAnalyses retrieves analyses created at or after since, oldest
// first. Trend calculations depend on the ascending order.
func (r *SQLRepository) ListAnalyses(ctx context.Context, tenantID string, since time.Time) ([]*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, results, summary, created_at
		FROM analyses
		WHERE tenant_id = ? AND created_at >= ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*domain.Analysis
	for rows.Next() {
		a, err := r.scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}

	return analyses, rows.Err()
}

func (r *SQLRepository) scanAnalysis(row scanner) (*domain.Analysis, error) {
	var a domain.Analysis
	var results, summary string

	if err := row.Scan(&a.ID, &a.TenantID, &results, &summary, &a.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(results), &a.Results); err != nil {
		return nil, fmt.Errorf("failed to parse results for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(summary), &a.Summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary for %s: %w", a.ID, err)
	}

	return &a, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
