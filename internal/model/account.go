package model

import "time"

// AccountStatus is the soft-delete flag of an account.
type AccountStatus string

const (
	AccountActive   AccountStatus = "activo"
	AccountDisabled AccountStatus = "inactivo"
)

// Account is a persisted identity with credentials and a role.
type Account struct {
	ID           int64         `json:"id"`
	Username     string        `json:"username"`
	PasswordHash string        `json:"-"`
	Nombre       string        `json:"nombre"`
	Apellido     string        `json:"apellido"`
	Email        string        `json:"email"`
	Telefono     string        `json:"telefono,omitempty"`
	Role         Role          `json:"rol"`
	Status       AccountStatus `json:"estado"`
	LastSeenAt   *time.Time    `json:"ultima_conexion,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Active reports whether the account may log in.
func (a *Account) Active() bool {
	return a.Status == AccountActive
}

// PublicUser converts the account into the user object returned to clients.
func (a *Account) PublicUser() *PublicUser {
	return &PublicUser{
		ID:       a.ID,
		Username: a.Username,
		Nombre:   a.Nombre,
		Apellido: a.Apellido,
		Email:    a.Email,
		Role:     a.Role,
	}
}

// PublicUser is the user object in login and check_session responses.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Email    string `json:"email"`
	Role     Role   `json:"rol"`
}

// LoginRequest is the payload for POST /login.
type LoginRequest struct {
	Usuario  string `json:"usuario" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=255"`
	Rol      string `json:"rol" binding:"required,rol"`
}

// RegisterRequest is the payload for POST /register.
type RegisterRequest struct {
	Nombre          string `json:"nombre" binding:"required,min=2,max=50,nombre"`
	Apellido        string `json:"apellido" binding:"required,min=2,max=50,nombre"`
	Email           string `json:"email" binding:"required,email,max=100"`
	Username        string `json:"username" binding:"required,usuario"`
	Password        string `json:"password" binding:"required,min=6,max=255"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	Telefono        string `json:"telefono" binding:"omitempty,telefono"`
	Rol             string `json:"rol" binding:"required,oneof=alumno profesor"`
}

// CSRFValidateRequest is the payload for POST /csrf_token.
type CSRFValidateRequest struct {
	Token string `json:"token" binding:"required,max=256"`
}
