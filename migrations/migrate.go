package migrations

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Migrate runs every migration in order. Migrations are written to be safe
// to re-run on an already migrated database.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) {
	for _, mig := range miglist {
		logger.Info("Running migration", zap.String("name", mig.name))
		mig.fn(ctx, pool)
	}
}
