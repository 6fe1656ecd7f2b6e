package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tgfeed/internal/domain"
	"tgfeed/internal/media"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Detail        string                `json:"detail"`
	SessionStatus *domain.SessionStatus `json:"session_status,omitempty"`
}

// requireActiveSession gates query endpoints on session health. Responses
// never leak raw errors: the caller gets the full status payload and 401.
func (s *Server) requireActiveSession(w http.ResponseWriter, r *http.Request) bool {
	st := s.sessions.CheckStatus(r.Context())
	if st.RequiresReconnect {
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Detail:        "upstream session requires reconnection",
			SessionStatus: &st,
		})
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "tgfeed relay running"})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.CheckStatus(r.Context()))
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Reconnect(r.Context()))
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid request body"})
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Code is required"})
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.VerifyCode(r.Context(), req.Code, req.Password))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if !s.requireActiveSession(w, r) {
		return
	}

	q := r.URL.Query()
	limit := intParam(q.Get("limit"), 50)
	offsetID := intParam(q.Get("offset_id"), 0)
	textOnly := boolParam(q.Get("filter"), true)
	todayOnly := boolParam(q.Get("today_only"), false)

	s.serveHistory(w, r, limit, offsetID, textOnly, todayOnly)
}

func (s *Server) handleMessagesToday(w http.ResponseWriter, r *http.Request) {
	if !s.requireActiveSession(w, r) {
		return
	}
	limit := intParam(r.URL.Query().Get("limit"), 100)
	s.serveHistory(w, r, limit, 0, false, true)
}

func (s *Server) serveHistory(w http.ResponseWriter, r *http.Request, limit, offsetID int, textOnly, todayOnly bool) {
	ctx := r.Context()
	channelID := s.selector.Current()

	msgs, err := s.client.Messages(ctx, channelID, limit, offsetID)
	if err != nil {
		s.logger.Error("history fetch failed", "channel", channelID, "err", err)
		code := http.StatusBadGateway
		if errors.Is(err, domain.ErrNotSupported) {
			code = http.StatusNotImplemented
		}
		writeJSON(w, code, errorBody{Detail: "failed to fetch messages from upstream"})
		return
	}

	now := s.now()
	frames := make([]domain.MessageFrame, 0, len(msgs))
	for i := range msgs {
		msg := &msgs[i]
		if todayOnly && !domain.SameDay(msg.Date, now) {
			continue
		}
		if textOnly {
			if msg.Text == "" {
				continue
			}
			frames = append(frames, domain.NewMessageFrame(domain.NormalizedMessage{
				ID:        msg.ID,
				ChannelID: msg.ChannelID,
				Timestamp: msg.Date,
				Kind:      domain.KindText,
				Text:      msg.Text,
			}, now))
			continue
		}
		frames = append(frames, domain.NewMessageFrame(s.normalize(ctx, msg), now))
	}
	writeJSON(w, http.StatusOK, frames)
}

// normalize builds the full delivery view of one history message, resolving
// media under the pull inline ceiling.
func (s *Server) normalize(ctx context.Context, msg *domain.UpstreamMessage) domain.NormalizedMessage {
	norm := domain.NormalizedMessage{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		Timestamp: msg.Date,
		Text:      msg.Text,
		HasMedia:  msg.HasMedia(),
		Poll:      msg.Poll,
	}
	kind, _ := media.Classify(msg)
	norm.Kind = kind

	if norm.HasMedia {
		var size int64
		if msg.File != nil {
			size = msg.File.Size
		}
		norm.Media = s.resolver.Resolve(ctx, msg, media.ResolveOptions{
			IncludeFull: size <= s.pullLim,
			InlineLimit: s.pullLim,
		})
	}
	return norm
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	if !s.requireActiveSession(w, r) {
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid message id"})
		return
	}
	fullData := boolParam(r.URL.Query().Get("full_data"), true)

	msg, err := s.client.Message(r.Context(), s.selector.Current(), id)
	if err != nil || msg == nil || !msg.HasMedia() {
		if err != nil && !errors.Is(err, domain.ErrNotSupported) {
			s.logger.Warn("media lookup failed", "id", id, "err", err)
		}
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "No media found"})
		return
	}

	desc := s.resolver.Resolve(r.Context(), msg, media.ResolveOptions{
		IncludeFull: fullData,
		InlineLimit: s.pullLim,
	})
	if desc == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "No media found"})
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleSwitchChannel(w http.ResponseWriter, r *http.Request) {
	if !s.requireActiveSession(w, r) {
		return
	}

	var req struct {
		ChannelID int64 `json:"channel_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid request body"})
		return
	}
	if req.ChannelID == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "channel_id is required"})
		return
	}

	previous := s.selector.Switch(req.ChannelID)
	s.logger.Info("channel switched", "from", previous, "to", req.ChannelID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"previous_channel": previous,
		"current_channel":  req.ChannelID,
	})
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func boolParam(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
