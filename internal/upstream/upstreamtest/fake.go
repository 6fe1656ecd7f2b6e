// Package upstreamtest provides a scriptable in-memory upstream client for
// tests.
package upstreamtest

import (
	"context"
	"sync"

	"tgfeed/internal/domain"
)

// Fake implements domain.Client. Zero value is usable: disconnected, no
// identity, no history. Fields are read under the same lock the interface
// methods take; set them before handing the fake to the code under test or
// via the setters.
type Fake struct {
	mu sync.Mutex

	connected bool

	Identity    *domain.Identity
	MeErr       error
	ConnectErr  error
	SignInErr   error
	PasswordErr error
	CodeErr     error

	History []domain.UpstreamMessage
	Media   map[int][]byte

	MessagesErr error
	DownloadErr error

	SignInCalls   int
	CodeRequested bool

	updates chan domain.UpstreamMessage
}

func New() *Fake {
	return &Fake{
		Media:   make(map[int][]byte),
		updates: make(chan domain.UpstreamMessage, 16),
	}
}

func (f *Fake) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

func (f *Fake) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Fake) Me(ctx context.Context) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MeErr != nil {
		return nil, f.MeErr
	}
	if f.Identity == nil {
		return nil, domain.ErrAuthExpired
	}
	return f.Identity, nil
}

func (f *Fake) RequestLoginCode(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CodeErr != nil {
		return f.CodeErr
	}
	f.CodeRequested = true
	return nil
}

func (f *Fake) SignIn(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignInCalls++
	return f.SignInErr
}

func (f *Fake) CheckPassword(ctx context.Context, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PasswordErr != nil {
		return f.PasswordErr
	}
	// A successful second factor authenticates the session.
	f.SignInErr = nil
	return nil
}

// Authenticate marks the fake as connected and authorized as id.
func (f *Fake) Authenticate(id *domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.Identity = id
	f.MeErr = nil
}

func (f *Fake) Messages(ctx context.Context, channelID int64, limit, offsetID int) ([]domain.UpstreamMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MessagesErr != nil {
		return nil, f.MessagesErr
	}
	var out []domain.UpstreamMessage
	for _, m := range f.History {
		if m.ChannelID != channelID {
			continue
		}
		if offsetID > 0 && m.ID >= offsetID {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) Message(ctx context.Context, channelID int64, id int) (*domain.UpstreamMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MessagesErr != nil {
		return nil, f.MessagesErr
	}
	for i := range f.History {
		if f.History[i].ChannelID == channelID && f.History[i].ID == id {
			m := f.History[i]
			return &m, nil
		}
	}
	return nil, domain.ErrMediaUnavailable
}

func (f *Fake) Download(ctx context.Context, msg *domain.UpstreamMessage) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DownloadErr != nil {
		return nil, f.DownloadErr
	}
	data, ok := f.Media[msg.ID]
	if !ok {
		return nil, domain.ErrMediaUnavailable
	}
	return data, nil
}

func (f *Fake) Updates(ctx context.Context) (<-chan domain.UpstreamMessage, error) {
	return f.updates, nil
}

// Emit pushes a live new-message event into the updates stream.
func (f *Fake) Emit(msg domain.UpstreamMessage) {
	f.updates <- msg
}

// CloseUpdates ends the updates stream.
func (f *Fake) CloseUpdates() {
	close(f.updates)
}
