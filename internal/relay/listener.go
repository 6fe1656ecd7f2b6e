// Package relay consumes the upstream event stream and fans surviving
// events out to live subscribers.
package relay

import (
	"context"
	"log/slog"
	"time"

	"tgfeed/internal/domain"
	"tgfeed/internal/hub"
	"tgfeed/internal/media"
	"tgfeed/internal/metrics"
)

// Listener receives every new-message event, filters it against the active
// channel and the current process day, resolves media under the push inline
// ceiling, and broadcasts the normalized message. Events are handled
// strictly in arrival order; the broadcast for event N completes before
// event N+1 is touched.
type Listener struct {
	client      domain.Client
	selector    *Selector
	resolver    *media.Resolver
	hub         *hub.Hub
	inlineLimit int64
	logger      *slog.Logger

	now func() time.Time

	relayed       *metrics.Counter
	droppedFilter *metrics.Counter
}

type ListenerConfig struct {
	Client      domain.Client
	Selector    *Selector
	Resolver    *media.Resolver
	Hub         *hub.Hub
	InlineLimit int64 // push inline ceiling in bytes
	Logger      *slog.Logger
	Metrics     *metrics.Collector
	Now         func() time.Time // overridable for tests
}

func NewListener(cfg ListenerConfig) *Listener {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.InlineLimit == 0 {
		cfg.InlineLimit = media.PushInlineLimit
	}
	l := &Listener{
		client:      cfg.Client,
		selector:    cfg.Selector,
		resolver:    cfg.Resolver,
		hub:         cfg.Hub,
		inlineLimit: cfg.InlineLimit,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
	if cfg.Metrics != nil {
		l.relayed = cfg.Metrics.Counter("tgfeed_relayed_messages_total", "Events broadcast to subscribers.")
		l.droppedFilter = cfg.Metrics.Counter("tgfeed_dropped_events_total", "Events discarded by channel or date filter.")
	}
	return l
}

// Run subscribes to the upstream stream and handles events until ctx is
// cancelled or the stream closes.
func (l *Listener) Run(ctx context.Context) error {
	updates, err := l.client.Updates(ctx)
	if err != nil {
		return err
	}
	l.logger.Info("upstream listener started", "channel", l.selector.Current())

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("upstream listener stopping")
			return nil
		case msg, ok := <-updates:
			if !ok {
				l.logger.Warn("upstream event stream closed")
				return nil
			}
			l.handle(ctx, &msg)
		}
	}
}

func (l *Listener) handle(ctx context.Context, msg *domain.UpstreamMessage) {
	if msg.ChannelID != l.selector.Current() {
		l.countDropped()
		return
	}
	// Live relay is same-day only; history is the query surface's job.
	if !domain.SameDay(msg.Date, l.now()) {
		l.countDropped()
		return
	}

	norm := l.normalize(ctx, msg)
	frame := domain.NewMessageFrame(norm, l.now())

	l.logger.Info("live message", "id", msg.ID, "type", frame.Type)
	l.hub.Broadcast(frame)
	if l.relayed != nil {
		l.relayed.Inc()
	}
}

func (l *Listener) normalize(ctx context.Context, msg *domain.UpstreamMessage) domain.NormalizedMessage {
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
		norm.Media = l.resolver.Resolve(ctx, msg, media.ResolveOptions{
			IncludeFull: size <= l.inlineLimit,
			InlineLimit: l.inlineLimit,
		})
	}
	return norm
}

func (l *Listener) countDropped() {
	if l.droppedFilter != nil {
		l.droppedFilter.Inc()
	}
}
