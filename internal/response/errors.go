package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionRequired    ErrCode = "SESSION_REQUIRED"
	ErrLoginLocked        ErrCode = "LOGIN_LOCKED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden    ErrCode = "FORBIDDEN"
	ErrCSRFRequired ErrCode = "CSRF_REQUIRED"
	ErrCSRFInvalid  ErrCode = "CSRF_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrWeakPassword   ErrCode = "WEAK_PASSWORD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrAccountNotFound  ErrCode = "ACCOUNT_NOT_FOUND"
	ErrDuplicateAccount ErrCode = "DUPLICATE_ACCOUNT"
	ErrMethodNotAllowed ErrCode = "METHOD_NOT_ALLOWED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrRegisterLimit     ErrCode = "REGISTER_LIMIT"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Credenciales incorrectas"
	case ErrSessionRequired:
		return "Debe iniciar sesión para continuar."
	case ErrLoginLocked:
		return "Demasiados intentos fallidos. Intente nuevamente en unos minutos."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "No tiene permisos para acceder a este recurso."
	case ErrCSRFRequired:
		return "Token CSRF requerido"
	case ErrCSRFInvalid:
		return "Token CSRF inválido o expirado"

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Datos inválidos. Revise los campos enviados."
	case ErrInvalidID:
		return "Identificador inválido."
	case ErrInvalidPayload:
		return "Datos JSON inválidos"
	case ErrWeakPassword:
		return "La contraseña es demasiado débil."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Recurso no encontrado."
	case ErrAccountNotFound:
		return "Cuenta no encontrada."
	case ErrDuplicateAccount:
		return "El nombre de usuario o email ya están registrados"
	case ErrMethodNotAllowed:
		return "Método no permitido"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Demasiadas solicitudes. Intente nuevamente más tarde."
	case ErrRegisterLimit:
		return "Demasiados intentos de registro. Intente nuevamente en una hora."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Error del sistema"
	default:
		return "Ocurrió un error inesperado."
	}
}

// Success messages.
const (
	MsgLoginOK         = "Inicio de sesión exitoso"
	MsgLogoutOK        = "Sesión cerrada correctamente"
	MsgCSRFValid       = "Token CSRF válido"
	MsgRegistered      = "Usuario registrado exitosamente"
	MsgAccountDisabled = "Cuenta desactivada correctamente"
)
