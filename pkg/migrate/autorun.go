package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/topupstore-backend/pkg/config"
	"github.com/angelmondragon/topupstore-backend/pkg/db"
	"github.com/angelmondragon/topupstore-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations on boot, but only in dev with the
// auto-migrate flag set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	dialect := DialectFor(cfg.FeatureFlags.UseSQLite)
	m, err := New(sqlDB, dialect, DefaultDir)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"dir": DefaultDir, "dialect": dialect})
	logg.Info(ctx, "applying migrations on boot")
	if err := m.Exec(ctx, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
