package migrations

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var miglist = []migrator{
	{
		name: "create_users",
		fn: func(ctx context.Context, pool *pgxpool.Pool) {
			if tableExists(ctx, pool, "users") {
				return
			}

			_, err := pool.Exec(ctx, `CREATE TABLE users (
				user_id TEXT PRIMARY KEY,
				api_token TEXT NOT NULL UNIQUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`)

			if err != nil {
				panic(err)
			}
		},
	},
	{
		name: "create_audit_logs",
		fn: func(ctx context.Context, pool *pgxpool.Pool) {
			if tableExists(ctx, pool, "audit_logs") {
				return
			}

			_, err := pool.Exec(ctx, `CREATE TABLE audit_logs (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				action TEXT NOT NULL,
				detail JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`)

			if err != nil {
				panic(err)
			}

			_, err = pool.Exec(ctx, "CREATE INDEX audit_logs_user_idx ON audit_logs (user_id, created_at)")

			if err != nil {
				panic(err)
			}
		},
	},
	{
		name: "audit_logs_action_idx",
		fn: func(ctx context.Context, pool *pgxpool.Pool) {
			if !colExists(ctx, pool, "audit_logs", "action") {
				panic("required column audit_logs.action does not exist")
			}

			_, err := pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS audit_logs_action_idx ON audit_logs (action)")

			if err != nil {
				panic(err)
			}
		},
	},
}
