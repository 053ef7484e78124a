package models

import "time"

// Marketing config keys stored in the marketing_config key-value table.
// They are read fresh on every tick so operators can retune a live system
// without a restart.
const (
	ConfigKeyQuietStart  = "quiet_start"   // "00".."23"
	ConfigKeyQuietEnd    = "quiet_end"     // "00".."23"
	ConfigKeyRatePerHour = "rate_per_hour" // integer string
	ConfigKeySenderName  = "sender_name"

	// Rate limiter bucket, managed by internal/ratelimit
	ConfigKeyRateBucketHour  = "rate_bucket_hour"
	ConfigKeyRateBucketCount = "rate_bucket_count"
)

// ConfigEntry is one marketing_config row
type ConfigEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
