package domain

import (
	"context"
	"time"
)

// FileInfo describes the file behind an attachment, when the upstream
// exposes one.
type FileInfo struct {
	ID       string // upstream file handle used for downloads
	Name     string
	MimeType string
	Size     int64
}

// UpstreamMessage is a raw message event as delivered by the upstream
// source, before normalization. Attachment presence is a set of flags; the
// media resolver collapses them into exactly one MediaKind.
type UpstreamMessage struct {
	ID        int
	ChannelID int64
	Date      time.Time
	Text      string

	Photo     bool
	Video     bool
	Animation bool
	Voice     bool
	Audio     bool
	Sticker   bool
	Document  bool
	Poll      *PollInfo
	File      *FileInfo
}

// HasMedia reports whether the event carried any attachment.
func (m *UpstreamMessage) HasMedia() bool {
	return m.Photo || m.Video || m.Animation || m.Voice || m.Audio ||
		m.Sticker || m.Document || m.Poll != nil
}

// Client is the opaque authenticated upstream client. The wire protocol
// behind it is out of scope; adapters translate their transport's failures
// into the error taxonomy in errors.go.
type Client interface {
	// Connect establishes the transport. It does not imply authorization.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Connected() bool

	// Me resolves the current identity. Fails with a taxonomy error when
	// the session is unusable (ErrNotConnected, ErrAuthExpired, ...).
	Me(ctx context.Context) (*Identity, error)

	// RequestLoginCode starts a fresh login challenge for the configured
	// account.
	RequestLoginCode(ctx context.Context) error
	// SignIn submits a login code. Returns ErrPasswordNeeded when the
	// account has a second factor.
	SignIn(ctx context.Context, code string) error
	// CheckPassword completes the second factor.
	CheckPassword(ctx context.Context, password string) error

	// Messages fetches history for a channel, newest first.
	Messages(ctx context.Context, channelID int64, limit, offsetID int) ([]UpstreamMessage, error)
	// Message fetches a single message by id.
	Message(ctx context.Context, channelID int64, id int) (*UpstreamMessage, error)
	// Download fetches the attachment bytes of a message. A message without
	// downloadable media yields ErrMediaUnavailable.
	Download(ctx context.Context, msg *UpstreamMessage) ([]byte, error)
	// Updates returns the live new-message event stream. The channel is
	// closed when ctx is cancelled or the transport drops.
	Updates(ctx context.Context) (<-chan UpstreamMessage, error)
}
