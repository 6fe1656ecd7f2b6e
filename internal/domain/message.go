package domain

import "time"

// MediaKind classifies an attachment into exactly one kind.
type MediaKind string

const (
	KindPhoto     MediaKind = "photo"
	KindVideo     MediaKind = "video"
	KindAnimation MediaKind = "animation"
	KindVoice     MediaKind = "voice"
	KindAudio     MediaKind = "audio"
	KindSticker   MediaKind = "sticker"
	KindPoll      MediaKind = "poll"
	KindFile      MediaKind = "file"
	KindText      MediaKind = "text"
)

// MediaDescriptor carries attachment metadata and the payload-policy outcome.
// Exactly one payload shape applies: Data set (inline base64),
// RequiresDownload set (reference via DownloadURL), or the descriptor is nil
// altogether (omitted — upstream returned no bytes).
type MediaDescriptor struct {
	Kind             MediaKind `json:"type"`
	MimeType         string    `json:"mime_type"`
	SizeBytes        int64     `json:"file_size"`
	FileName         string    `json:"file_name,omitempty"`
	Data             string    `json:"data,omitempty"`
	RequiresDownload bool      `json:"requires_download,omitempty"`
	DownloadURL      string    `json:"download_url,omitempty"`
}

// Inline reports whether the payload is embedded in the descriptor.
func (d *MediaDescriptor) Inline() bool { return d != nil && d.Data != "" }

// PollInfo is the question/options summary of a poll attachment.
type PollInfo struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// NormalizedMessage is the canonical relay payload built from one upstream
// event. Immutable once constructed; never persisted.
type NormalizedMessage struct {
	ID        int              `json:"id"`
	ChannelID int64            `json:"channel_id"`
	Timestamp time.Time        `json:"-"`
	Kind      MediaKind        `json:"type"`
	Text      string           `json:"text"`
	HasMedia  bool             `json:"has_media"`
	Media     *MediaDescriptor `json:"media_data"`
	Poll      *PollInfo        `json:"poll,omitempty"`
}
