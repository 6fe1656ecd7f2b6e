// Package media classifies upstream attachments and applies the inline
// versus reference payload policy.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"

	"tgfeed/internal/domain"
)

// Inline ceilings per delivery path. Pull (REST) tolerates larger inline
// payloads than push (live subscriber frames).
const (
	PullInlineLimit = 5 << 20
	PushInlineLimit = 1 << 20
)

// Resolver turns a raw upstream attachment into a MediaDescriptor.
type Resolver struct {
	client domain.Client
	logger *slog.Logger
}

func NewResolver(client domain.Client, logger *slog.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

// Classify maps the attachment-presence flags to exactly one kind and
// derives the MIME type: explicit field first, then the kind table, then
// the extension table, then unknown binary.
func Classify(msg *domain.UpstreamMessage) (domain.MediaKind, string) {
	kind := domain.KindText
	switch {
	case msg.Photo:
		kind = domain.KindPhoto
	case msg.Video:
		kind = domain.KindVideo
	case msg.Animation:
		kind = domain.KindAnimation
	case msg.Voice:
		kind = domain.KindVoice
	case msg.Audio:
		kind = domain.KindAudio
	case msg.Sticker:
		kind = domain.KindSticker
	case msg.Poll != nil:
		kind = domain.KindPoll
	case msg.Document:
		kind = domain.KindFile
	}

	if msg.File != nil && msg.File.MimeType != "" {
		return kind, msg.File.MimeType
	}
	if m, ok := kindMIME[kind]; ok {
		return kind, m
	}
	if kind == domain.KindFile && msg.File != nil && msg.File.Name != "" {
		return kind, mimeByExtension(msg.File.Name)
	}
	return kind, fallbackMIME
}

// ResolveOptions controls the payload policy for one resolution.
type ResolveOptions struct {
	// IncludeFull requests inline bytes. It is honored only below
	// InlineLimit; above it the result is always a reference.
	IncludeFull bool
	// InlineLimit is the active inline ceiling in bytes; <= 0 means no
	// ceiling.
	InlineLimit int64
}

// Resolve builds the descriptor for a message's attachment. A message
// without media resolves to nil, and so does an attachment whose download
// yields no bytes — missing data is an omitted payload, not an error.
func (r *Resolver) Resolve(ctx context.Context, msg *domain.UpstreamMessage, opts ResolveOptions) *domain.MediaDescriptor {
	if msg == nil || !msg.HasMedia() {
		return nil
	}

	kind, mimeType := Classify(msg)

	var size int64
	ext := ""
	if msg.File != nil {
		size = msg.File.Size
		ext = filepath.Ext(msg.File.Name)
	}
	fileName := fmt.Sprintf("media_%d%s", msg.ID, ext)

	inline := opts.IncludeFull && (opts.InlineLimit <= 0 || size <= opts.InlineLimit)
	if !inline {
		return &domain.MediaDescriptor{
			Kind:             kind,
			MimeType:         mimeType,
			SizeBytes:        size,
			FileName:         fileName,
			RequiresDownload: true,
			DownloadURL:      fmt.Sprintf("/media/%d", msg.ID),
		}
	}

	data, err := r.client.Download(ctx, msg)
	if err != nil || len(data) == 0 {
		if err != nil {
			r.logger.Warn("media download failed, omitting payload",
				"message_id", msg.ID, "err", err)
		}
		return nil
	}

	return &domain.MediaDescriptor{
		Kind:      kind,
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
		FileName:  fileName,
		Data:      base64.StdEncoding.EncodeToString(data),
	}
}
