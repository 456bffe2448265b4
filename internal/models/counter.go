package models

import "time"

// Counter is a persisted rate-limit counter
type Counter struct {
	CounterKey string    `gorm:"column:counter_key;primaryKey;size:512" json:"key"`
	Value      []byte    `gorm:"not null" json:"-"` // 4-byte little-endian int32
	Version    int64     `gorm:"not null" json:"version"`
	ExpiresAt  time.Time `gorm:"index;not null" json:"expires_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Counter) TableName() string {
	return "rate_limit_counters"
}
