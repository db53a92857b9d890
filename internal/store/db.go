package store

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the Postgres connection via gorm's postgres dialect
// (backed by jackc/pgx/v5), the same ORM the starting codebase's
// cmd/api/main.go setupDatabase used.
func Connect(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

// AutoMigrate creates/updates the five tables this repo owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserRow{},
		&DeviceTokenRow{},
		&PostRow{},
		&EngagementRow{},
		&EngagementHistoryRow{},
	)
}
