package sqlite

const createAnalysisTable = `
CREATE TABLE IF NOT EXISTS gpt_analysis_cache (
	content_hash TEXT PRIMARY KEY,
	request_data TEXT,
	response_data BLOB NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	model TEXT NOT NULL,
	token_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_analysis_expires ON gpt_analysis_cache(expires_at);
`

const createPropertyTable = `
CREATE TABLE IF NOT EXISTS property_data_cache (
	property_id TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	last_accessed DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_property_expires ON property_data_cache(expires_at);
`

const createStatsTable = `
CREATE TABLE IF NOT EXISTS cache_stats (
	date TEXT PRIMARY KEY,
	api_calls INTEGER NOT NULL DEFAULT 0,
	cache_hits INTEGER NOT NULL DEFAULT 0,
	tokens_saved INTEGER NOT NULL DEFAULT 0,
	cost_saved REAL NOT NULL DEFAULT 0.0
);
`
