package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// AuditRepository persists the activity log and the login/registration
// attempt tables.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Name identifies the sink in logs and metrics.
func (r *AuditRepository) Name() string {
	return "postgres"
}

// Record writes ev to logs_actividad and, for login and registration
// events, to the matching attempts table in the same transaction.
func (r *AuditRepository) Record(ctx context.Context, ev model.AuditEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var accountID *int64
	if ev.AccountID != 0 {
		id := ev.AccountID
		accountID = &id
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO logs_actividad (id, usuario_id, username, accion, exitoso, motivo, detalles, ip_address, user_agent, fecha)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.ID, accountID, ev.Username, string(ev.Action), ev.Success, ev.Reason, ev.Details, ev.IP, ev.UserAgent, ev.At,
	); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	switch ev.Action {
	case model.AuditLogin, model.AuditLoginFailed, model.AuditLoginLocked:
		var reason *string
		if ev.Reason != "" {
			reason = &ev.Reason
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO intentos_login (username, usuario_id, ip_address, user_agent, exitoso, motivo, fecha)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ev.Username, accountID, ev.IP, ev.UserAgent, ev.Success, reason, ev.At,
		); err != nil {
			return fmt.Errorf("insert login attempt: %w", err)
		}
	case model.AuditRegister, model.AuditRegisterFailed:
		if _, err := tx.Exec(ctx,
			`INSERT INTO registros_intentos (username, ip_address, exitoso, fecha)
			 VALUES ($1, $2, $3, $4)`,
			ev.Username, ev.IP, ev.Success, ev.At,
		); err != nil {
			return fmt.Errorf("insert registration attempt: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// RecentLoginAttempts returns the latest attempts for a username, newest first.
func (r *AuditRepository) RecentLoginAttempts(ctx context.Context, username string, limit int) ([]model.LoginAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, usuario_id, ip_address, user_agent, exitoso, motivo, fecha
		 FROM intentos_login WHERE username = $1
		 ORDER BY fecha DESC LIMIT $2`,
		username, limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.LoginAttempt, error) {
		var a model.LoginAttempt
		err := row.Scan(&a.ID, &a.Username, &a.AccountID, &a.IP, &a.UserAgent, &a.Success, &a.Reason, &a.At)
		return a, err
	})
}

// PurgeBefore deletes audit rows older than cutoff and returns how many
// rows were removed across all tables.
func (r *AuditRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"logs_actividad", "intentos_login", "registros_intentos"} {
		tag, err := r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE fecha < $1`, cutoff)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
