package migrations

import (
	"github.com/eraycetinay/mailblast/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_email_templates",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.EmailTemplateModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_email_templates_owner_id ON email_templates (owner_id)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.EmailTemplateModel{})
			},
		},
		{
			ID: "000002_create_batches",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.BatchModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_batches_owner_created ON batches (owner_id, created_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.BatchModel{})
			},
		},
		{
			ID: "000003_create_delivery_records",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.DeliveryRecordModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_delivery_records_batch_id ON delivery_records (batch_id)`,
					`CREATE INDEX IF NOT EXISTS idx_delivery_records_owner_status_created ON delivery_records (owner_id, status, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_delivery_records_retry ON delivery_records (next_retry_at) WHERE status = 'PENDING' AND next_retry_at IS NOT NULL`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DeliveryRecordModel{})
			},
		},
	})

	return m.Migrate()
}
