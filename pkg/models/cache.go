package models

import "time"

// AnalysisEntry stores a cached LLM analysis result.
type AnalysisEntry struct {
	Fingerprint    string    `json:"fingerprint"`
	RequestExcerpt string    `json:"request_excerpt"`
	Payload        []byte    `json:"payload"`
	Model          string    `json:"model"`
	TokenCount     int       `json:"token_count"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// PropertyEntry stores cached property data keyed by a caller-supplied ID.
type PropertyEntry struct {
	PropertyID   string    `json:"property_id"`
	Payload      []byte    `json:"payload"`
	SourceURL    string    `json:"source_url"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastAccessed time.Time `json:"last_accessed"`
}
