package config

const (
	defaultDataDir            = "~/.local/share/callwave/data"
	defaultLogDir             = "~/.local/share/callwave/logs"
	defaultAPIBind            = "127.0.0.1:8080"
	defaultPollInterval       = 5
	defaultErrorRetryInterval = 10
	defaultWorkers            = 4
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultMaxAttempts        = 5
	defaultBaseDelaySeconds   = 1.0
	defaultMaxDelaySeconds    = 60.0
	defaultProvider           = "flaky"
	defaultFailureRate        = 0.25
	defaultMinLatencySeconds  = 1.0
	defaultMaxLatencySeconds  = 3.0
	defaultAnalysisBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultAnalysisModel      = "google/gemini-3-flash-preview"
	defaultAnalysisTimeout    = 30
	defaultNtfyTimeout        = 10
	defaultSubscriberBuffer   = 64
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Scheduler: Scheduler{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			Workers:            defaultWorkers,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Retry: Retry{
			MaxAttempts: defaultMaxAttempts,
			BaseDelay:   defaultBaseDelaySeconds,
			MaxDelay:    defaultMaxDelaySeconds,
		},
		Analysis: Analysis{
			Provider:       defaultProvider,
			FailureRate:    defaultFailureRate,
			MinLatency:     defaultMinLatencySeconds,
			MaxLatency:     defaultMaxLatencySeconds,
			BaseURL:        defaultAnalysisBaseURL,
			Model:          defaultAnalysisModel,
			TimeoutSeconds: defaultAnalysisTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Analysis:       true,
			Errors:         true,
		},
		Events: Events{
			SubscriberBuffer: defaultSubscriberBuffer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
