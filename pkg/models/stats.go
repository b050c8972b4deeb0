package models

// CacheStats aggregates cache usage over a window of days.
type CacheStats struct {
	PeriodDays    int     `json:"period_days"`
	APICalls      int64   `json:"api_calls"`
	CacheHits     int64   `json:"cache_hits"`
	TotalRequests int64   `json:"total_requests"`
	HitRate       float64 `json:"hit_rate"`
	TokensSaved   int64   `json:"tokens_saved"`
	CostSaved     float64 `json:"cost_saved"`
}
