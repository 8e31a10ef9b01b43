package models

import "time"

// Event types recorded by the authenticator.
const (
	EventRegister     = "auth.register"
	EventLoginSuccess = "auth.login.success"
	EventLoginFail    = "auth.login.fail"
)

// Event represents an entry in the authentication audit log.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "auth.register", "auth.login.fail"
	Level     string    `json:"level"` // e.g., "info", "warn"
	Message   string    `json:"message"`
	UserID    string    `json:"userId,omitempty"` // Empty for attempts against unknown users
	CreatedAt time.Time `json:"createdAt"`
}
