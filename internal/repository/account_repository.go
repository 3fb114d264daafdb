package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// AccountRepository is the PostgreSQL credential store.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, username, password, nombre, apellido, email, telefono, rol, estado, ultima_conexion, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*model.Account, error) {
	a := &model.Account{}
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Nombre, &a.Apellido, &a.Email,
		&a.Telefono, &a.Role, &a.Status, &a.LastSeenAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

// FindActiveByUsernameAndRole looks up an active account. A role mismatch
// or a disabled account is reported as ErrNotFound.
func (r *AccountRepository) FindActiveByUsernameAndRole(ctx context.Context, username string, role model.Role) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+`
		 FROM usuarios
		 WHERE username = $1 AND rol = $2 AND estado = 'activo'`,
		username, string(role),
	))
}

// GetByID retrieves an account regardless of status.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM usuarios WHERE id = $1`, id,
	))
}

// TouchLastSeen records the time of the latest successful login.
func (r *AccountRepository) TouchLastSeen(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE usuarios SET ultima_conexion = NOW() WHERE id = $1`, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsByUsernameOrEmail reports whether either identifier is taken.
func (r *AccountRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM usuarios WHERE username = $1 OR lower(email) = lower($2))`,
		username, strings.TrimSpace(email),
	).Scan(&exists)
	return exists, err
}

// Create inserts a new account and fills in its generated fields.
func (r *AccountRepository) Create(ctx context.Context, a *model.Account) error {
	if a.Status == "" {
		a.Status = model.AccountActive
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO usuarios (username, password, nombre, apellido, email, telefono, rol, estado)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		a.Username, a.PasswordHash, a.Nombre, a.Apellido, a.Email, a.Telefono, string(a.Role), string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return translate(err)
}

// SetStatus soft-enables or soft-disables an account.
func (r *AccountRepository) SetStatus(ctx context.Context, id int64, status model.AccountStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE usuarios SET estado = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
