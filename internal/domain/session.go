package domain

import "time"

// SessionSource identifies where the credential came from.
type SessionSource string

const (
	SourceString SessionSource = "environment_string"
	SourceFile   SessionSource = "file"
	SourceNew    SessionSource = "new"
)

// AuthState is the authentication state of the upstream session.
type AuthState string

const (
	AuthUnauthenticated AuthState = "unauthenticated"
	AuthAuthenticated   AuthState = "authenticated"
	AuthRequires2FA     AuthState = "requires_2fa"
	AuthExpired         AuthState = "expired"
	AuthConnectionError AuthState = "connection_error"
)

// Identity is the upstream account the session is bound to. Present only
// when the session is authenticated.
type Identity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Session is the credential and connectivity record bound to one upstream
// identity. Created once at startup; mutated only by the session manager.
type Session struct {
	Source        SessionSource
	SourceDetail  string // file path when Source is SourceFile
	State         AuthState
	Identity      *Identity
	LastCheckedAt time.Time
}

// SessionStatus is the structured outcome of a session operation. Every
// upstream failure class maps to exactly one Status value; raw errors never
// escape as faults.
type SessionStatus struct {
	Status            string    `json:"status"`
	Authenticated     bool      `json:"authenticated"`
	Connected         bool      `json:"is_connected"`
	User              *Identity `json:"user,omitempty"`
	Error             string    `json:"error,omitempty"`
	Message           string    `json:"message,omitempty"`
	RequiresReconnect bool      `json:"requires_reconnect"`
	RequiresNewLogin  bool      `json:"requires_new_login,omitempty"`
	Requires2FA       bool      `json:"requires_2fa,omitempty"`
	RequiresCode      bool      `json:"requires_code,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Status values reported by the session manager.
const (
	StatusActive       = "active"
	StatusDisconnected = "disconnected"
	StatusExpired      = "expired"
	StatusPassword     = "password_needed"
	StatusError        = "error"
	StatusAuthError    = "auth_error"
	StatusCodeSent     = "code_sent"
	StatusReconnected  = "reconnected"
	StatusReconnectErr = "reconnect_failed"
	StatusVerified     = "verified"
	StatusVerifyErr    = "verification_failed"
)
