package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tgfeed/internal/config"
	"tgfeed/internal/domain"
	"tgfeed/internal/hub"
	"tgfeed/internal/media"
	"tgfeed/internal/metrics"
	"tgfeed/internal/relay"
	"tgfeed/internal/server"
	"tgfeed/internal/session"
	"tgfeed/internal/upstream"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "tgfeed",
		Short:   "tgfeed: live channel-to-subscriber message relay",
		Long:    "tgfeed relays new messages from one upstream channel to WebSocket subscribers and serves history and media over REST.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file, JSON or YAML (default: config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(sessionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return "config.json"
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config file already exists: %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the relay (upstream listener + HTTP/WebSocket server)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel),
	}))

	if err := os.MkdirAll(cfg.General.MediaDir, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := session.NewManager(cfg.Upstream, clientFactory(cfg), logger)
	client, err := mgr.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize upstream client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		logger.Warn("initial upstream connect failed, reconnect via API", "err", err)
	}

	var collector *metrics.Collector
	if cfg.Relay.MetricsEnabled {
		collector = metrics.NewCollector()
	}

	selector := relay.NewSelector(cfg.Upstream.ChannelID)
	resolver := media.NewResolver(client, logger)
	h := hub.New(mgr.CheckStatus, logger)
	if collector != nil {
		h.InstrumentFailures(collector.Counter("tgfeed_broadcast_failures_total", "Subscribers removed after a failed send."))
	}

	listener := relay.NewListener(relay.ListenerConfig{
		Client:      client,
		Selector:    selector,
		Resolver:    resolver,
		Hub:         h,
		InlineLimit: cfg.Relay.PushInlineLimit,
		Logger:      logger,
		Metrics:     collector,
	})
	go func() {
		if err := listener.Run(ctx); err != nil {
			logger.Error("upstream listener error", "err", err)
		}
	}()

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Logger:          logger,
		Sessions:        mgr,
		Hub:             h,
		Selector:        selector,
		Resolver:        resolver,
		Client:          client,
		PullInlineLimit: cfg.Relay.PullInlineLimit,
		Metrics:         collector,
	})

	logger.Info("relay started", "channel", cfg.Upstream.ChannelID, "version", version)
	err = srv.Start(ctx)

	if derr := client.Disconnect(context.Background()); derr != nil {
		logger.Warn("upstream disconnect failed", "err", derr)
	}
	return err
}

// clientFactory builds the upstream client for the session manager. The
// credential blob selects the account; the transport itself is token-based.
func clientFactory(cfg *config.Config) session.Factory {
	return func(cred *session.Credential) (domain.Client, error) {
		if cfg.Upstream.BotToken == "" {
			return nil, fmt.Errorf("upstream.botToken is required (or set BOT_TOKEN)")
		}
		return upstream.NewBotClient(cfg.Upstream.BotToken, logger), nil
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check upstream session health and print the status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr := session.NewManager(cfg.Upstream, clientFactory(cfg), logger)
			client, err := mgr.Initialize(ctx)
			if err != nil {
				return fmt.Errorf("initialize upstream client: %w", err)
			}
			if err := client.Connect(ctx); err != nil {
				logger.Warn("upstream connect failed", "err", err)
			}

			st := mgr.CheckStatus(ctx)
			data, _ := json.MarshalIndent(st, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
}

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Export and import credential files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export [file]",
		Short: "Print a credential file as a portable string",
		Long:  "Encodes a credential file so it can travel through the SESSION_STRING environment variable. Without an argument the first healthy configured file is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(resolveConfigPath())
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				for _, candidate := range cfg.Upstream.SessionFiles {
					if session.CheckFileHealth(candidate) == nil {
						path = candidate
						break
					}
				}
				if path == "" {
					return fmt.Errorf("no healthy credential file among %v", cfg.Upstream.SessionFiles)
				}
			}

			encoded, err := session.ExportFile(path)
			if err != nil {
				return err
			}
			fmt.Println(encoded)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import [string] [file]",
		Short: "Write a portable credential string back to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := session.ImportFile(args[0], args[1]); err != nil {
				return err
			}
			logger.Info("credential imported", "file", args[1])
			return nil
		},
	})

	return cmd
}
