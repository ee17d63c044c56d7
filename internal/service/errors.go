package service

import "errors"

// Status clasifica el resultado de una operacion. El mapeo a HTTP lo hace
// el llamador.
type Status int

const (
	StatusInternal Status = iota
	StatusOK
	StatusCreated
	StatusNotFound
	StatusConflict
	StatusUnauthorized
	StatusValidation
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCreated:
		return "created"
	case StatusNotFound:
		return "not_found"
	case StatusConflict:
		return "conflict"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusValidation:
		return "validation_error"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

// Result es la salida de las operaciones que no devuelven datos.
type Result struct {
	Status  Status `json:"-"`
	Message string `json:"message"`
}

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOldPassword = errors.New("invalid old password")
	ErrResetNotRequested  = errors.New("reset not requested")
	ErrResetExpired       = errors.New("reset token expired")
	ErrResetTokenInvalid  = errors.New("reset token invalid")
	ErrTokenInvalid       = errors.New("jwt invalid")
	ErrTokenExpired       = errors.New("jwt expired")
	ErrTokenRevoked       = errors.New("jwt revoked")
	ErrNotificationFailed = errors.New("email send failed")
)

const internalMessage = "Internal server error!"

// publicMessages mantiene los textos que ve el cliente, en orden de chequeo.
var publicMessages = []struct {
	err error
	msg string
}{
	{ErrInvalidInput, "Invalid request!"},
	{ErrUserNotFound, "User not found!"},
	{ErrUserExists, "User already registered!"},
	{ErrInvalidCredentials, "Invalid credential!"},
	{ErrInvalidOldPassword, "Invalid old password"},
	{ErrResetNotRequested, "Invalid token!"},
	{ErrResetExpired, "Time out! Try again"},
	{ErrResetTokenInvalid, "Invalid token!"},
	{ErrTokenInvalid, "Invalid token!"},
	{ErrTokenExpired, "Invalid token!"},
	{ErrTokenRevoked, "Invalid token!"},
	{ErrNotificationFailed, "Email delivery unavailable"},
}

// StatusOf clasifica un error devuelto por el servicio. Cualquier error que
// no sea de dominio cuenta como interno.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidInput):
		return StatusValidation
	case errors.Is(err, ErrUserNotFound):
		return StatusNotFound
	case errors.Is(err, ErrUserExists):
		return StatusConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidOldPassword),
		errors.Is(err, ErrResetNotRequested),
		errors.Is(err, ErrResetExpired),
		errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenRevoked):
		return StatusUnauthorized
	case errors.Is(err, ErrNotificationFailed):
		return StatusUnavailable
	default:
		return StatusInternal
	}
}

// MessageOf devuelve el mensaje apto para el cliente. Los errores internos
// se ocultan detras de un mensaje generico.
func MessageOf(err error) string {
	for _, pm := range publicMessages {
		if errors.Is(err, pm.err) {
			return pm.msg
		}
	}
	return internalMessage
}
