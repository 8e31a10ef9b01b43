package auth

import "errors"

// Error kinds returned by the authenticator. Callers add detail with
// fmt.Errorf("%w: ...") and match with errors.Is.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateUser  = errors.New("user already exists")
	ErrAuthentication = errors.New("invalid credentials")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrUserNotFound   = errors.New("user not found")
)
