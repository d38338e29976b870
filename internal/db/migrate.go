package db

import (
	"tradejournal/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Instrument{},
		&models.Tag{},
		&models.Trade{},
		&models.JournalSettings{},
		&models.DailyEquity{},
		&models.Goal{},
		&models.RiskBreachLog{},
		&models.PropEvaluation{},
		&models.ExportJob{},
		&models.ExportJobPerformance{},
	)
}
