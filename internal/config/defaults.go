package config

const (
	defaultConfigPath        = "~/.config/lexcase/config.toml"
	defaultDataDir           = "~/.local/share/lexcase"
	defaultLogDir            = "~/.local/share/lexcase/logs"
	defaultGeminiModel       = "gemini-1.5-flash"
	defaultGeminiTimeout     = 90
	defaultTemperature       = 0.7
	defaultMaxOutputTokens   = 8192
	defaultAnalysisMode      = "smart"
	defaultAnalysisProfile   = "default"
	defaultBind              = "127.0.0.1:3000"
	defaultEndpoint          = "http://127.0.0.1:3000"
	defaultRateLimit         = 10
	defaultCacheTTLHours     = 24
	defaultCacheMaxEntries   = 1000
	defaultMinTextLength     = 10
	defaultMaxTextLength     = 10000
	defaultMaxSummariesChars = 24000
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Gemini: Gemini{
			Model:           defaultGeminiModel,
			TimeoutSeconds:  defaultGeminiTimeout,
			Temperature:     defaultTemperature,
			MaxOutputTokens: defaultMaxOutputTokens,
		},
		Analysis: Analysis{
			Mode:         defaultAnalysisMode,
			Profile:      defaultAnalysisProfile,
			SaveProgress: true,
		},
		Server: Server{
			Bind:               defaultBind,
			Endpoint:           defaultEndpoint,
			RateLimitPerMinute: defaultRateLimit,
			CacheTTLHours:      defaultCacheTTLHours,
			CacheMaxEntries:    defaultCacheMaxEntries,
			MinTextLength:      defaultMinTextLength,
			MaxTextLength:      defaultMaxTextLength,
			MaxSummariesChars:  defaultMaxSummariesChars,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
