package relay

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"tgfeed/internal/domain"
	"tgfeed/internal/hub"
	"tgfeed/internal/media"
	"tgfeed/internal/upstream/upstreamtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type recordSub struct {
	mu     sync.Mutex
	frames []domain.MessageFrame
}

func (s *recordSub) ID() string { return "record" }

func (s *recordSub) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := v.(domain.MessageFrame); ok {
		s.frames = append(s.frames, f)
	}
	return nil
}

func (s *recordSub) Close() error { return nil }

func (s *recordSub) all() []domain.MessageFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MessageFrame(nil), s.frames...)
}

func newTestListener(t *testing.T, f *upstreamtest.Fake, channelID int64) (*Listener, *recordSub) {
	t.Helper()
	h := hub.New(func(ctx context.Context) domain.SessionStatus {
		return domain.SessionStatus{Status: domain.StatusActive}
	}, testLogger())
	sub := &recordSub{}
	if !h.Connect(context.Background(), sub) {
		t.Fatal("subscriber rejected")
	}
	l := NewListener(ListenerConfig{
		Client:   f,
		Selector: NewSelector(channelID),
		Resolver: media.NewResolver(f, testLogger()),
		Hub:      h,
		Logger:   testLogger(),
	})
	return l, sub
}

func TestListenerDropsOtherChannel(t *testing.T) {
	f := upstreamtest.New()
	l, sub := newTestListener(t, f, 7)

	l.handle(context.Background(), &domain.UpstreamMessage{
		ID: 1, ChannelID: 9, Date: time.Now(), Text: "wrong channel",
	})
	if len(sub.all()) != 0 {
		t.Error("event from a non-active channel was relayed")
	}
}

func TestListenerDropsOtherDay(t *testing.T) {
	f := upstreamtest.New()
	l, sub := newTestListener(t, f, 7)

	l.handle(context.Background(), &domain.UpstreamMessage{
		ID: 2, ChannelID: 7, Date: time.Now().AddDate(0, 0, -1), Text: "yesterday",
	})
	if len(sub.all()) != 0 {
		t.Error("event from a previous day was relayed")
	}
}

func TestListenerRelaysMatchingEvent(t *testing.T) {
	f := upstreamtest.New()
	l, sub := newTestListener(t, f, 7)

	l.handle(context.Background(), &domain.UpstreamMessage{
		ID: 3, ChannelID: 7, Date: time.Now(), Text: "hello",
	})

	frames := sub.all()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	got := frames[0]
	if got.ID != 3 || got.Type != "text" || got.Text != "hello" {
		t.Errorf("frame = %+v", got)
	}
	if !got.IsToday {
		t.Error("same-day event not flagged is_today")
	}
	if got.HasMedia || got.Media != nil {
		t.Error("text event must carry no media")
	}
}

func TestListenerInlinesSmallMedia(t *testing.T) {
	f := upstreamtest.New()
	f.Media[4] = []byte("small photo")
	l, sub := newTestListener(t, f, 7)

	l.handle(context.Background(), &domain.UpstreamMessage{
		ID: 4, ChannelID: 7, Date: time.Now(), Photo: true,
		File: &domain.FileInfo{Size: 11},
	})

	frames := sub.all()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Media == nil || !frames[0].Media.Inline() {
		t.Errorf("small attachment should be inline: %+v", frames[0].Media)
	}
}

func TestListenerLargeMediaBecomesReference(t *testing.T) {
	f := upstreamtest.New()
	l, sub := newTestListener(t, f, 7)

	l.handle(context.Background(), &domain.UpstreamMessage{
		ID: 5, ChannelID: 7, Date: time.Now(), Video: true,
		File: &domain.FileInfo{Size: media.PushInlineLimit + 1},
	})

	frames := sub.all()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	m := frames[0].Media
	if m == nil || m.Inline() || !m.RequiresDownload {
		t.Errorf("oversized attachment must be a reference: %+v", m)
	}
}

func TestListenerRunConsumesStream(t *testing.T) {
	f := upstreamtest.New()
	l, sub := newTestListener(t, f, 7)

	f.Emit(domain.UpstreamMessage{ID: 6, ChannelID: 7, Date: time.Now(), Text: "live"})
	f.Emit(domain.UpstreamMessage{ID: 7, ChannelID: 8, Date: time.Now(), Text: "filtered"})
	f.CloseUpdates()

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	frames := sub.all()
	if len(frames) != 1 || frames[0].ID != 6 {
		t.Errorf("frames = %+v", frames)
	}
}

func TestSelectorSwitchIsAtomic(t *testing.T) {
	s := NewSelector(7)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.Switch(7)
			s.Switch(9)
		}
	}()

	for i := 0; i < 10000; i++ {
		if v := s.Current(); v != 7 && v != 9 {
			t.Fatalf("observed torn value %d", v)
		}
	}
	close(stop)
	wg.Wait()
}
