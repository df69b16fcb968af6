// Package domain defines the core interfaces and types for Kite.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Criterion operations
	SaveCriterion(ctx context.Context, tenantID string, c *Criterion) error
	GetCriterion(ctx context.Context, tenantID string, criterionID string) (*Criterion, error)
	ListCriteria(ctx context.Context, tenantID string) ([]*Criterion, error)
	DeleteCriterion(ctx context.Context, tenantID string, criterionID string) error

	// Analysis results
	SaveAnalysis(ctx context.Context, tenantID string, analysis *Analysis) error
	GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*Analysis, error)
	ListAnalyses(ctx context.Context, tenantID string, since time.Time) ([]*Analysis, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
