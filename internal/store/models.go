// Package store is the persistence boundary: gorm row structs kept
// separate from the domain aggregates, plus repository implementations
// satisfying the domain packages' Repository interfaces. Grounded on
// the starting codebase's internal/models/user.go + internal/auth's
// direct *gorm.DB usage, not the sqlc-based internal/infrastructure/
// persistence layer (see DESIGN.md for why that path was dropped).
package store

import "time"

type UserRow struct {
	UserID                 string `gorm:"primaryKey;column:user_id"`
	AccessTokenCiphertext  string `gorm:"column:access_token_ciphertext"`
	RefreshTokenCiphertext string `gorm:"column:refresh_token_ciphertext"`
	TokenExpiresAt         *time.Time
	IsConnected            bool
	Version                int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (UserRow) TableName() string { return "users" }

type DeviceTokenRow struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	Token     string `gorm:"uniqueIndex"`
	Platform  string
	CreatedAt time.Time
}

func (DeviceTokenRow) TableName() string { return "device_tokens" }

type PostRow struct {
	ID             string `gorm:"primaryKey"`
	PostIDLocal    string `gorm:"uniqueIndex:idx_post_local_per_user"`
	PostIDX        string `gorm:"index"`
	UserID         string `gorm:"uniqueIndex:idx_post_local_per_user;index"`
	Content        string
	Title          string
	Visibility     string
	CloudImageURLs string `gorm:"column:cloud_image_urls"` // comma-joined; see post_repository.go
	LocationLat    *float64
	LocationLng    *float64
	LocationAddr   string
	ScheduledAt    *time.Time
	PublishedAt    *time.Time
	Status         string `gorm:"index"`
	FailureReason  string
	Attempt        int
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (PostRow) TableName() string { return "posts" }

type EngagementRow struct {
	PostIDX     string `gorm:"primaryKey;column:post_id_x"`
	PostIDLocal string `gorm:"index"`
	UserID      string `gorm:"index"`
	Likes       int
	Retweets    int
	Quotes      int
	Replies     int
	Impressions int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (EngagementRow) TableName() string { return "engagements" }

// EngagementHistoryRow backs the append-only hourlyMetrics time-series;
// kept as a separate table rather than a JSON column so the collector
// can append without reading+rewriting the whole history each refresh.
type EngagementHistoryRow struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	PostIDX     string `gorm:"index"`
	Timestamp   time.Time
	Likes       int
	Retweets    int
	Quotes      int
	Replies     int
	Impressions int
}

func (EngagementHistoryRow) TableName() string { return "engagement_history" }
