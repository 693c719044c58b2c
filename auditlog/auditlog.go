// Package auditlog records onboarding and environment actions to postgres.
package auditlog

import (
	"context"

	"github.com/google/uuid"
	"github.com/infinitybotlist/eureka/jsonimpl"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type AuditLog struct {
	Pool   *pgxpool.Pool
	Logger *zap.Logger
}

// Record writes one audit row. Failures are logged and swallowed, an audit
// outage must not fail the user-facing operation it describes.
func (a *AuditLog) Record(ctx context.Context, userID string, action string, detail any) {
	payload, err := jsonimpl.Marshal(detail)

	if err != nil {
		a.Logger.Error("Failed to marshal audit detail", zap.Error(err), zap.String("action", action))
		return
	}

	_, err = a.Pool.Exec(
		ctx,
		"INSERT INTO audit_logs (id, user_id, action, detail) VALUES ($1, $2, $3, $4)",
		uuid.NewString(),
		userID,
		action,
		payload,
	)

	if err != nil {
		a.Logger.Error("Failed to record audit log", zap.Error(err), zap.String("action", action), zap.String("user_id", userID))
	}
}
