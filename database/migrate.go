// database/migrate.go - Database migration runner
package database

import (
	"fmt"

	"gorm.io/gorm"

	"campusquest/models"
)

// RunMigrations creates or updates every table and index.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return createIndexes(db)
}

// createIndexes adds the indexes GORM tags cannot express.
func createIndexes(db *gorm.DB) error {
	stmts := []string{
		// Leaderboard ordering
		"CREATE INDEX IF NOT EXISTS idx_user_profiles_xp ON user_profiles(xp DESC, display_name)",
		// Sweeper scans completed rows by completion time
		"CREATE INDEX IF NOT EXISTS idx_challenge_progress_completed ON challenge_progress(completed, completed_at)",
		"CREATE INDEX IF NOT EXISTS idx_xp_events_user_created ON xp_events(user_id, created_at DESC)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
