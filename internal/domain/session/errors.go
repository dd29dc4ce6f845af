package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/webitel/im-relay-service/internal/domain/model"
)

// ErrInvalidTokens rejects an initialize call missing either token.
var ErrInvalidTokens = errors.New("session: controller and satellite tokens are required")

// SingletonViolation is returned when a singleton role is already connected.
type SingletonViolation struct {
	Role model.Role
}

func (e *SingletonViolation) Error() string {
	return fmt.Sprintf("a %s is already connected to this session", e.Role)
}

// TokenError is returned for a missing or mismatching role token.
type TokenError struct {
	Role model.Role
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("invalid %s token", e.Role)
}

// httpStatus maps a handshake failure to the status of the pending upgrade
// and the close code of its half-open socket.
func httpStatus(err error) (status int, closeCode int) {
	var (
		sv *SingletonViolation
		te *TokenError
	)
	switch {
	case errors.As(err, &sv):
		return http.StatusConflict, model.ClosePolicyViolation
	case errors.As(err, &te):
		return http.StatusForbidden, model.ClosePolicyViolation
	default:
		return http.StatusInternalServerError, model.CloseInternalError
	}
}
