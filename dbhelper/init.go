package dbhelper

import (
	"fmt"
	"testing"
	"time"

	"wardrobeapi/config"
	"wardrobeapi/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupDB(cfg *config.Config) *gorm.DB {
	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Warn
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		panic(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Minute * 5)

	// embeddings live in a pgvector column
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		panic(fmt.Errorf("enable pgvector: %w", err))
	}
	Migrate(db, &models.UserAccount{})
	Migrate(db, &models.UserPushToken{})
	Migrate(db, &models.Clothing{})
	Migrate(db, &models.OutfitGenerationRun{})
	Migrate(db, &models.OutfitRecommendation{})

	return db
}

// SetupTestDB connects to the database configured for tests and skips the
// test when none is configured.
func SetupTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBHost == "" {
		t.Skip("DB_HOST not set, skipping database test")
	}
	db := SetupDB(cfg)
	cleaner := SetupCleaner(db)
	cleaner()
	t.Cleanup(cleaner)
	return db
}
