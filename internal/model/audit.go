package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names a security-relevant event.
type AuditAction string

const (
	AuditLogin           AuditAction = "login"
	AuditLoginFailed     AuditAction = "login_failed"
	AuditLoginLocked     AuditAction = "login_locked"
	AuditLogout          AuditAction = "logout"
	AuditRegister        AuditAction = "register"
	AuditRegisterFailed  AuditAction = "register_failed"
	AuditAccountDisabled AuditAction = "account_disabled"
	AuditCSRFIssued      AuditAction = "csrf_token_generated"
	AuditCSRFRejected    AuditAction = "csrf_token_validation_failed"
)

// Failure reason codes recorded on login attempts.
const (
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonLocked             = "locked"
	ReasonSystemError        = "system_error"
)

// AuditEvent is one entry of the security/activity log.
type AuditEvent struct {
	ID        uuid.UUID   `json:"id"`
	AccountID int64       `json:"account_id,omitempty"`
	Username  string      `json:"username,omitempty"`
	Action    AuditAction `json:"action"`
	Success   bool        `json:"success"`
	Reason    string      `json:"reason,omitempty"`
	Details   string      `json:"details,omitempty"`
	IP        string      `json:"ip"`
	UserAgent string      `json:"user_agent"`
	At        time.Time   `json:"timestamp"`
}

// LoginAttempt is a single login attempt, recorded for lockout forensics.
type LoginAttempt struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	AccountID *int64    `json:"account_id,omitempty"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Success   bool      `json:"success"`
	Reason    *string   `json:"reason,omitempty"`
	At        time.Time `json:"attempted_at"`
}
