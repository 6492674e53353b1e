package storage

import (
	"fmt"

	"paper-intake/models"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store bündelt den Datenbankzugriff des Dienstes.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open öffnet die SQLite-Datenbank und migriert das Schema.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("datenbank öffnen: %w", err)
	}

	err = db.AutoMigrate(
		&models.PaperRecord{},
		&models.AuthorRecord{},
		&models.Identity{},
		&models.MatchResult{},
	)
	if err != nil {
		return nil, fmt.Errorf("schema migrieren: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// DB gibt das rohe gorm-Handle zurück.
func (s *Store) DB() *gorm.DB {
	return s.db
}
