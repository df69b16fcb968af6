package repository

// Schema definitions for the Kite database.
// Compatible with both SQLite and PostgreSQL.

const schemaCriteria = `
CREATE TABLE IF NOT EXISTS criteria (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    metric_name TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 10.0,
    intervals TEXT NOT NULL,
    min_value TEXT,
    expression TEXT,
    lower_is_better INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_criteria_tenant ON criteria(tenant_id);
CREATE INDEX IF NOT EXISTS idx_criteria_enabled ON criteria(tenant_id, enabled);
CREATE INDEX IF NOT EXISTS idx_criteria_metric ON criteria(tenant_id, metric_name);
`

const schemaAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    results TEXT NOT NULL,
    summary TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_tenant ON analyses(tenant_id);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(tenant_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCriteria,
		schemaAnalyses,
	}
}
