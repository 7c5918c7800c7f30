package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/proposals"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRecomputeNetVotes = "2024-09-01_recompute_proposal_net_votes"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRecomputeNetVotes, apply: recomputeNetVotes},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// recomputeNetVotes rewrites the stored votes column for rows imported with
// votes equal to upvotes. GormJournal.Load derives net votes in memory and
// never writes them back, so without this pass the column stays stale for
// SQL readers (exports, ORDER BY votes) until each row is next voted on.
func recomputeNetVotes(db *gorm.DB) error {
	return db.Model(&proposals.ProposalRecord{}).
		Where("votes <> upvotes - downvotes").
		Update("votes", gorm.Expr("upvotes - downvotes")).Error
}
