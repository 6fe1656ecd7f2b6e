package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"tgfeed/internal/config"
	"tgfeed/internal/domain"
	"tgfeed/internal/hub"
	"tgfeed/internal/media"
	"tgfeed/internal/metrics"
	"tgfeed/internal/relay"
	"tgfeed/internal/session"
	"tgfeed/internal/upstream/upstreamtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fixture struct {
	fake     *upstreamtest.Fake
	sessions *session.Manager
	hub      *hub.Hub
	selector *relay.Selector
	server   *Server
	ts       *httptest.Server
}

func newFixture(t *testing.T, channelID int64) *fixture {
	t.Helper()
	logger := testLogger()

	fake := upstreamtest.New()
	cred := session.EncodeBlob(bytes.Repeat([]byte{0xA5}, 256))
	mgr := session.NewManager(
		config.UpstreamConfig{SessionString: cred, ChannelID: channelID},
		func(cred *session.Credential) (domain.Client, error) { return fake, nil },
		logger,
	)
	if _, err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	h := hub.New(mgr.CheckStatus, logger)
	selector := relay.NewSelector(channelID)
	srv := New(Config{
		Logger:   logger,
		Sessions: mgr,
		Hub:      h,
		Selector: selector,
		Resolver: media.NewResolver(fake, logger),
		Client:   fake,
		Metrics:  metrics.NewCollector(),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{fake: fake, sessions: mgr, hub: h, selector: selector, server: srv, ts: ts}
}

func (f *fixture) authenticate() {
	f.fake.Authenticate(&domain.Identity{ID: 42, Username: "relay", FirstName: "Relay"})
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, 7)

	var body map[string]string
	if code := getJSON(t, f.ts.URL+"/", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] == "" {
		t.Error("health payload missing status")
	}
}

func TestSessionStatusActive(t *testing.T) {
	f := newFixture(t, 7)
	f.authenticate()

	var st domain.SessionStatus
	if code := getJSON(t, f.ts.URL+"/session-status", &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if st.Status != domain.StatusActive || !st.Authenticated {
		t.Errorf("status = %+v", st)
	}
	if st.User == nil || st.User.Username != "relay" {
		t.Errorf("user = %+v", st.User)
	}
}

func TestMessagesRejectedWhenSessionUnhealthy(t *testing.T) {
	f := newFixture(t, 7)
	// fake is never connected: session is disconnected, requires reconnect.

	var body struct {
		Detail        string                `json:"detail"`
		SessionStatus *domain.SessionStatus `json:"session_status"`
	}
	if code := getJSON(t, f.ts.URL+"/messages", &body); code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if body.SessionStatus == nil || !body.SessionStatus.RequiresReconnect {
		t.Errorf("rejection payload = %+v", body)
	}
}

func TestMessagesTextOnlyByDefault(t *testing.T) {
	f := newFixture(t, 7)
	f.authenticate()
	now := time.Now()
	f.fake.History = []domain.UpstreamMessage{
		{ID: 1, ChannelID: 7, Date: now, Text: "first"},
		{ID: 2, ChannelID: 7, Date: now, Photo: true, File: &domain.FileInfo{Size: 10}},
		{ID: 3, ChannelID: 7, Date: now, Text: "third"},
		{ID: 4, ChannelID: 8, Date: now, Text: "other channel"},
	}

	var frames []domain.MessageFrame
	if code := getJSON(t, f.ts.URL+"/messages", &frames); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2: %+v", len(frames), frames)
	}
	if frames[0].ID != 1 || frames[1].ID != 3 {
		t.Errorf("frames = %+v", frames)
	}
	for _, fr := range frames {
		if fr.Type != "text" || fr.HasMedia {
			t.Errorf("text-only item carries media: %+v", fr)
		}
	}
}

func TestMessagesFullModeInlinesMedia(t *testing.T) {
	f := newFixture(t, 7)
	f.authenticate()
	f.fake.History = []domain.UpstreamMessage{
		{ID: 5, ChannelID: 7, Date: time.Now(), Photo: true, File: &domain.FileInfo{Size: 9}},
	}
	f.fake.Media[5] = []byte("thumbnail")

	var frames []domain.MessageFrame
	if code := getJSON(t, f.ts.URL+"/messages?filter=false", &frames); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	m := frames[0].Media
	if m == nil || !m.Inline() || m.Kind != domain.KindPhoto {
		t.Errorf("media = %+v", m)
	}
}

func TestMessagesTodayFiltersByDay(t *testing.T) {
	f := newFixture(t, 7)
	f.authenticate()
	f.fake.History = []domain.UpstreamMessage{
		{ID: 6, ChannelID: 7, Date: time.Now(), Text: "today"},
		{ID: 7, ChannelID: 7, Date: time.Now().AddDate(0, 0, -1), Text: "yesterday"},
	}

	var frames []domain.MessageFrame
	if code := getJSON(t, f.ts.URL+"/messages/today", &frames); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(frames) != 1 || frames[0].ID != 6 || !frames[0].IsToday {
		t.Errorf("frames = %+v", frames)
	}
}

func TestMediaEndpointInline(t *testing.T) {
	f := newFixture(t, 7)
	f.authenticate()
	f.fake.History = []domain.UpstreamMessage{
		{ID: 8, ChannelID: 7, Date: time.Now(), Photo: true, File: &domain.FileInfo{Size: 5}},
	}
	f.fake.Media[8] = []byte("bytes")

	var desc domain.MediaDescriptor
	if code := getJSON(t, f.ts.URL+"/media/8", &desc); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !desc.Inline() || desc.Kind != domain.KindPhoto {
		t.Errorf("descriptor = %+v", desc)
	}
}

func TestMediaEndpointReferenceWhenFullDataOff(t *testing.T) {
	f := newFixture(t, 7)
	f.authenticate()
	f.fake.History = []domain.UpstreamMessage{
		{ID: 9, ChannelID: 7, Date: time.Now(), Video: true, File: &domain.FileInfo{Size: 100}},
	}

	var desc domain.MediaDescriptor
	if code := getJSON(t, f.ts.URL+"/media/9?full_data=false", &desc); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if desc.Inline() || !desc.RequiresDownload || desc.DownloadURL != "/media/9" {
		t.Errorf("descriptor = %+v", desc)
	}
}

func TestMediaEndpointNotFound(t *testing.T) {
	f := newFixture(t, 7)
	f.authenticate()
	f.fake.History = []domain.UpstreamMessage{
		{ID: 10, ChannelID: 7, Date: time.Now(), Text: "no attachment"},
	}

	if code := getJSON(t, f.ts.URL+"/media/10", nil); code != http.StatusNotFound {
		t.Errorf("text message: status = %d, want 404", code)
	}
	if code := getJSON(t, f.ts.URL+"/media/999", nil); code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", code)
	}
}

func TestSwitchChannel(t *testing.T) {
	f := newFixture(t, 7)
	f.authenticate()

	var body map[string]any
	code := postJSON(t, f.ts.URL+"/switch-channel", map[string]any{"channel_id": 9}, &body)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if f.selector.Current() != 9 {
		t.Errorf("selector = %d, want 9", f.selector.Current())
	}
	if body["current_channel"] != float64(9) || body["previous_channel"] != float64(7) {
		t.Errorf("body = %+v", body)
	}
}

func TestSwitchChannelRequiresID(t *testing.T) {
	f := newFixture(t, 7)
	f.authenticate()

	code := postJSON(t, f.ts.URL+"/switch-channel", map[string]any{}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
	if f.selector.Current() != 7 {
		t.Errorf("selector moved to %d on rejected switch", f.selector.Current())
	}
}

func TestVerifyCodeRequiresCode(t *testing.T) {
	f := newFixture(t, 7)

	var body struct {
		Detail string `json:"detail"`
	}
	code := postJSON(t, f.ts.URL+"/verify-code", map[string]string{"code": ""}, &body)
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if body.Detail != "Code is required" {
		t.Errorf("detail = %q", body.Detail)
	}
}

func TestReconnectAuthenticated(t *testing.T) {
	f := newFixture(t, 7)
	f.fake.Identity = &domain.Identity{ID: 42, Username: "relay"}

	var st domain.SessionStatus
	if code := postJSON(t, f.ts.URL+"/reconnect", map[string]any{}, &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if st.Status != domain.StatusReconnected || !st.Authenticated {
		t.Errorf("status = %+v", st)
	}
}

func TestMetricsExposition(t *testing.T) {
	f := newFixture(t, 7)

	resp, err := http.Get(f.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(buf.String(), "tgfeed_uptime_seconds") {
		t.Errorf("exposition missing uptime gauge:\n%s", buf.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, 7)

	req, err := http.NewRequest(http.MethodOptions, f.ts.URL+"/messages", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}
