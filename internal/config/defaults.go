package config

// Defaults returns the built-in configuration. The channel id has no
// sensible default and must come from the file or CHANNEL_ID.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			MediaDir: "media",
		},
		Upstream: UpstreamConfig{
			SessionFiles: []string{
				"session_name.session",
				"session.session",
				"telegram.session",
			},
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Relay: RelayConfig{
			PushInlineLimit: 1 << 20,
			PullInlineLimit: 5 << 20,
			MetricsEnabled:  true,
		},
	}
}
