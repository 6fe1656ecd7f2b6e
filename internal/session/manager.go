package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tgfeed/internal/config"
	"tgfeed/internal/domain"
)

// Factory constructs an upstream client from a validated credential.
type Factory func(cred *Credential) (domain.Client, error)

// Manager owns credential acquisition, connection health, and the
// authentication state machine. Mutating operations are serialized by a
// mutex so two reconnects can never race on the same transport.
type Manager struct {
	cfg     config.UpstreamConfig
	factory Factory
	logger  *slog.Logger

	mu      sync.Mutex
	client  domain.Client
	session domain.Session
}

func NewManager(cfg config.UpstreamConfig, factory Factory, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		factory: factory,
		logger:  logger,
		session: domain.Session{State: domain.AuthUnauthenticated},
	}
}

// Initialize acquires a credential by trying candidate sources in fixed
// priority order: encoded string, persisted files, then a brand-new
// unauthenticated client. Failures at one priority fall through to the
// next; only failing to construct any client at all is fatal.
func (m *Manager) Initialize(ctx context.Context) (domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Priority 1: encoded credential string.
	if m.cfg.SessionString != "" {
		cred, err := credentialFromString(m.cfg.SessionString)
		if err != nil {
			m.logger.Warn("credential string rejected, falling through", "err", err)
		} else {
			client, err := m.factory(cred)
			if err != nil {
				m.logger.Warn("client from credential string failed, falling through", "err", err)
			} else {
				m.logger.Info("client created from credential string")
				m.adopt(client, domain.SourceString, "")
				return client, nil
			}
		}
	}

	// Priority 2: persisted credential files.
	for _, path := range m.cfg.SessionFiles {
		if err := CheckFileHealth(path); err != nil {
			m.logger.Debug("credential file skipped", "path", path, "err", err)
			continue
		}
		client, err := m.factory(&Credential{Source: domain.SourceFile, Path: path})
		if err != nil {
			m.logger.Warn("client from credential file failed, falling through",
				"path", path, "err", err)
			continue
		}
		m.logger.Info("client created from credential file", "path", path)
		m.adopt(client, domain.SourceFile, path)
		return client, nil
	}

	// Priority 3: fresh client, interactive login required.
	path := FreshCredentialPath()
	if err := CreateCredentialFile(path); err != nil {
		m.logger.Warn("cannot persist fresh credential file", "path", path, "err", err)
	}
	client, err := m.factory(&Credential{Source: domain.SourceNew, Path: path})
	if err != nil {
		return nil, fmt.Errorf("create upstream client: %w", err)
	}
	m.logger.Info("created new client, login required", "path", path)
	m.adopt(client, domain.SourceNew, path)
	return client, nil
}

func (m *Manager) adopt(client domain.Client, src domain.SessionSource, detail string) {
	m.client = client
	m.session = domain.Session{
		Source:       src,
		SourceDetail: detail,
		State:        domain.AuthUnauthenticated,
	}
}

func credentialFromString(encoded string) (*Credential, error) {
	data, err := DecodeBlob(encoded)
	if err != nil {
		return nil, err
	}
	if err := ValidateBlob(data); err != nil {
		return nil, err
	}
	return &Credential{Source: domain.SourceString, Data: data}, nil
}

// Session returns a copy of the current session record.
func (m *Manager) Session() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// CheckStatus queries the client for the current identity and maps every
// failure class to exactly one status value. The mapping is total: unknown
// failures land in the generic error bucket, never propagate raw.
func (m *Manager) CheckStatus(ctx context.Context) domain.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkStatusLocked(ctx)
}

func (m *Manager) checkStatusLocked(ctx context.Context) domain.SessionStatus {
	now := time.Now()
	m.session.LastCheckedAt = now

	if m.client == nil || !m.client.Connected() {
		m.session.State = domain.AuthConnectionError
		return domain.SessionStatus{
			Status:            domain.StatusDisconnected,
			Connected:         false,
			Error:             "client is not connected to upstream servers",
			RequiresReconnect: true,
			Timestamp:         now,
		}
	}

	me, err := m.client.Me(ctx)
	switch {
	case err == nil:
		m.session.State = domain.AuthAuthenticated
		m.session.Identity = me
		return domain.SessionStatus{
			Status:        domain.StatusActive,
			Authenticated: true,
			Connected:     true,
			User:          me,
			Timestamp:     now,
		}

	case errors.Is(err, domain.ErrAuthExpired):
		m.session.State = domain.AuthExpired
		m.session.Identity = nil
		return domain.SessionStatus{
			Status:            domain.StatusExpired,
			Connected:         true,
			Error:             "session expired or authorization revoked",
			RequiresReconnect: true,
			RequiresNewLogin:  true,
			Timestamp:         now,
		}

	case errors.Is(err, domain.ErrAuthKeyInvalid):
		m.session.State = domain.AuthExpired
		m.session.Identity = nil
		return domain.SessionStatus{
			Status:            domain.StatusAuthError,
			Connected:         true,
			Error:             fmt.Sprintf("authentication key error: %v", err),
			RequiresReconnect: true,
			Timestamp:         now,
		}

	case errors.Is(err, domain.ErrPasswordNeeded):
		m.session.State = domain.AuthRequires2FA
		return domain.SessionStatus{
			Status:            domain.StatusPassword,
			Connected:         true,
			Error:             "two-factor authentication required",
			Requires2FA:       true,
			RequiresReconnect: true,
			Timestamp:         now,
		}

	case errors.Is(err, domain.ErrNotConnected):
		m.session.State = domain.AuthConnectionError
		return domain.SessionStatus{
			Status:            domain.StatusDisconnected,
			Connected:         false,
			Error:             err.Error(),
			RequiresReconnect: true,
			Timestamp:         now,
		}

	default:
		m.session.State = domain.AuthConnectionError
		return domain.SessionStatus{
			Status:            domain.StatusError,
			Connected:         true,
			Error:             fmt.Sprintf("error checking session: %v", err),
			RequiresReconnect: true,
			Timestamp:         now,
		}
	}
}

// Reconnect tears down any existing transport, reconnects, and if the
// session is not authorized triggers a fresh login challenge.
func (m *Manager) Reconnect(ctx context.Context) domain.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()

	if m.client == nil {
		return domain.SessionStatus{
			Status:            domain.StatusReconnectErr,
			Error:             "no upstream client",
			RequiresReconnect: true,
			Timestamp:         now,
		}
	}

	if m.client.Connected() {
		if err := m.client.Disconnect(ctx); err != nil {
			m.logger.Warn("disconnect before reconnect failed", "err", err)
		}
	}
	if err := m.client.Connect(ctx); err != nil {
		m.session.State = domain.AuthConnectionError
		return domain.SessionStatus{
			Status:            domain.StatusReconnectErr,
			Error:             fmt.Sprintf("failed to reconnect: %v", err),
			RequiresReconnect: true,
			Timestamp:         now,
		}
	}

	me, err := m.client.Me(ctx)
	if err == nil {
		m.session.State = domain.AuthAuthenticated
		m.session.Identity = me
		return domain.SessionStatus{
			Status:        domain.StatusReconnected,
			Authenticated: true,
			Connected:     true,
			User:          me,
			Message:       "successfully reconnected and authenticated",
			Timestamp:     now,
		}
	}

	// Not authorized on the fresh transport: start a login challenge.
	if err := m.client.RequestLoginCode(ctx); err != nil {
		return domain.SessionStatus{
			Status:            domain.StatusReconnectErr,
			Connected:         m.client.Connected(),
			Error:             fmt.Sprintf("failed to request login code: %v", err),
			RequiresReconnect: true,
			Timestamp:         now,
		}
	}
	m.session.State = domain.AuthUnauthenticated
	return domain.SessionStatus{
		Status:       domain.StatusCodeSent,
		Connected:    true,
		Message:      "authentication code sent, provide the code to verify",
		RequiresCode: true,
		Timestamp:    now,
	}
}

// VerifyCode submits the login code. When the account demands a second
// factor and no password was supplied the code is not consumed a second
// time; the caller is told to retry with a password.
func (m *Manager) VerifyCode(ctx context.Context, code, password string) domain.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()

	if m.client == nil {
		return domain.SessionStatus{
			Status:            domain.StatusVerifyErr,
			Error:             "no upstream client",
			RequiresReconnect: true,
			Timestamp:         now,
		}
	}

	err := m.client.SignIn(ctx, code)
	if errors.Is(err, domain.ErrPasswordNeeded) {
		if password == "" {
			m.session.State = domain.AuthRequires2FA
			return domain.SessionStatus{
				Status:      domain.StatusPassword,
				Connected:   m.client.Connected(),
				Message:     "two-factor authentication password required",
				Requires2FA: true,
				Timestamp:   now,
			}
		}
		err = m.client.CheckPassword(ctx, password)
	}
	if err != nil {
		return domain.SessionStatus{
			Status:    domain.StatusVerifyErr,
			Connected: m.client.Connected(),
			Error:     fmt.Sprintf("failed to verify code: %v", err),
			Timestamp: now,
		}
	}

	me, err := m.client.Me(ctx)
	if err != nil {
		m.logger.Warn("identity lookup after verification failed", "err", err)
	}
	m.session.State = domain.AuthAuthenticated
	m.session.Identity = me
	return domain.SessionStatus{
		Status:        domain.StatusVerified,
		Authenticated: true,
		Connected:     true,
		User:          me,
		Message:       "successfully verified and authenticated",
		Timestamp:     now,
	}
}
