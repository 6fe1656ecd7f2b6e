package domain

import "time"

// Wire frames sent to subscribers. Every frame is a tagged JSON object; the
// message-delivery frame reuses the media kind as its tag, mirroring the
// REST message items.

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
)

type ConnectionFrame struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	ChannelID int64  `json:"channel_id"`
	Date      string `json:"date"`
}

func NewConnectionFrame(channelID int64) ConnectionFrame {
	return ConnectionFrame{
		Type:      "connection",
		Status:    "connected",
		ChannelID: channelID,
		Date:      time.Now().Format(time.RFC3339),
	}
}

type SessionStatusFrame struct {
	Type   string        `json:"type"`
	Status SessionStatus `json:"status"`
}

func NewSessionStatusFrame(st SessionStatus) SessionStatusFrame {
	return SessionStatusFrame{Type: "session_status", Status: st}
}

type PongFrame struct {
	Type string `json:"type"`
	Date string `json:"date"`
}

func NewPongFrame() PongFrame {
	return PongFrame{Type: "pong", Date: time.Now().Format(time.RFC3339)}
}

type ErrorFrame struct {
	Type          string         `json:"type"`
	Error         string         `json:"error"`
	SessionStatus *SessionStatus `json:"session_status,omitempty"`
}

func NewErrorFrame(msg string, st *SessionStatus) ErrorFrame {
	return ErrorFrame{Type: "error", Error: msg, SessionStatus: st}
}

// MessageFrame is the delivery view of a NormalizedMessage.
type MessageFrame struct {
	ID        int              `json:"id"`
	Date      string           `json:"date"`
	DateOnly  string           `json:"date_only"`
	Type      string           `json:"type"`
	Text      string           `json:"text"`
	HasMedia  bool             `json:"has_media"`
	IsToday   bool             `json:"is_today"`
	ChannelID int64            `json:"channel_id"`
	Media     *MediaDescriptor `json:"media_data"`
	Poll      *PollInfo        `json:"poll,omitempty"`
}

// NewMessageFrame renders a normalized message for delivery. now anchors the
// is_today flag to the process-local day.
func NewMessageFrame(m NormalizedMessage, now time.Time) MessageFrame {
	kind := m.Kind
	if !m.HasMedia {
		kind = KindText
	}
	return MessageFrame{
		ID:        m.ID,
		Date:      m.Timestamp.Format(dateTimeLayout),
		DateOnly:  m.Timestamp.Format(dateLayout),
		Type:      string(kind),
		Text:      m.Text,
		HasMedia:  m.HasMedia,
		IsToday:   m.Timestamp.Format(dateLayout) == now.Format(dateLayout),
		ChannelID: m.ChannelID,
		Media:     m.Media,
		Poll:      m.Poll,
	}
}

// SameDay reports whether two instants fall on the same local calendar day.
func SameDay(a, b time.Time) bool {
	return a.Format(dateLayout) == b.Format(dateLayout)
}
