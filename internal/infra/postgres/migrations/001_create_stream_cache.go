package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// createStreamCacheTable creates the stream_cache table.
func createStreamCacheTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "001_create_stream_cache",
		Migrate: func(tx *gorm.DB) error {
			err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS stream_cache (
					key VARCHAR(512) PRIMARY KEY,
					providers TEXT[] NOT NULL DEFAULT '{}',
					payload JSONB NOT NULL,

					-- epoch milliseconds
					expires_at BIGINT NOT NULL,

					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
			`).Error
			if err != nil {
				return err
			}

			return tx.Exec("CREATE INDEX IF NOT EXISTS idx_stream_cache_expires_at ON stream_cache(expires_at);").Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS stream_cache;").Error
		},
	}
}
