package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/proposals"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	sqliteScheme   = "sqlite://"
	postgresScheme = "postgres://"
)

// Open connects to the database named by url, migrates the schema and applies
// pending one-shot migrations. Supported schemes are sqlite:// and postgres://.
func Open(url string, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, isSQLite, err := dialectorFor(url)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&proposals.ProposalRecord{}, &proposals.CommentRecord{}, &users.Identity{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("driver", db.Dialector.Name()))
	return db, nil
}

func dialectorFor(url string) (gorm.Dialector, bool, error) {
	trimmed := strings.TrimSpace(url)
	switch {
	case trimmed == "":
		return nil, false, fmt.Errorf("database url is required")
	case strings.HasPrefix(trimmed, postgresScheme), strings.HasPrefix(trimmed, "postgresql://"):
		return postgres.Open(trimmed), false, nil
	case strings.HasPrefix(trimmed, sqliteScheme):
		path := strings.TrimPrefix(trimmed, sqliteScheme)
		if path == "" {
			return nil, false, fmt.Errorf("sqlite database path is required")
		}
		return sqlite.Open(path), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported database url %q: expected %s or %s", trimmed, sqliteScheme, postgresScheme)
	}
}
