// Package server exposes the relay over HTTP: the REST query surface and
// the WebSocket subscriber endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tgfeed/internal/domain"
	"tgfeed/internal/hub"
	"tgfeed/internal/media"
	"tgfeed/internal/metrics"
	"tgfeed/internal/relay"
	"tgfeed/internal/session"
)

const requestTimeout = 10 * time.Second

type Config struct {
	Host            string
	Port            int
	Logger          *slog.Logger
	Sessions        *session.Manager
	Hub             *hub.Hub
	Selector        *relay.Selector
	Resolver        *media.Resolver
	Client          domain.Client
	PullInlineLimit int64
	Metrics         *metrics.Collector // nil disables /metrics
}

type Server struct {
	host     string
	port     int
	logger   *slog.Logger
	sessions *session.Manager
	hub      *hub.Hub
	selector *relay.Selector
	resolver *media.Resolver
	client   domain.Client
	pullLim  int64
	now      func() time.Time

	subscribers *metrics.Gauge

	server  *http.Server
	handler http.Handler
}

func New(cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.PullInlineLimit == 0 {
		cfg.PullInlineLimit = media.PullInlineLimit
	}

	s := &Server{
		host:     cfg.Host,
		port:     cfg.Port,
		logger:   cfg.Logger,
		sessions: cfg.Sessions,
		hub:      cfg.Hub,
		selector: cfg.Selector,
		resolver: cfg.Resolver,
		client:   cfg.Client,
		pullLim:  cfg.PullInlineLimit,
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /session-status", s.handleSessionStatus)
	mux.HandleFunc("POST /reconnect", s.handleReconnect)
	mux.HandleFunc("POST /verify-code", s.handleVerifyCode)
	mux.HandleFunc("GET /messages", s.handleMessages)
	mux.HandleFunc("GET /messages/today", s.handleMessagesToday)
	mux.HandleFunc("GET /media/{id}", s.handleMedia)
	mux.HandleFunc("POST /switch-channel", s.handleSwitchChannel)
	mux.HandleFunc("GET /ws", s.handleWS)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
		s.subscribers = cfg.Metrics.Gauge("tgfeed_subscribers", "Live subscriber connections.")
	}

	s.handler = cors(mux)
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           s.handler,
		ReadHeaderTimeout: requestTimeout,
	}

	s.logger.Info("server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// cors allows any origin. The relay serves read-mostly feeds to browser
// clients on other hosts.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
