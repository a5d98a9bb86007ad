package config

// RunMode selects which kind of run `treewatch run` issues.
type RunMode string

const (
	ModeAsk      RunMode = "ask"
	ModeDiscover RunMode = "discover"
)

// LogFormat selects the zerolog output.
type LogFormat string

const (
	LogConsole LogFormat = "console"
	LogJSON    LogFormat = "json"
)

// Config is the top-level treewatch configuration, corresponding to .treewatch.yml.
// Durations are Go duration strings such as "500ms" or "10s".
type Config struct {
	BackendURL string   `yaml:"backend_url" koanf:"backend_url"`
	HTTPURL    string   `yaml:"http_url" koanf:"http_url"`
	Mode       RunMode  `yaml:"mode" koanf:"mode"`
	VideoIDs   []string `yaml:"video_ids" koanf:"video_ids"`

	MaxIterations int `yaml:"max_iterations" koanf:"max_iterations"`
	MaxDepth      int `yaml:"max_depth" koanf:"max_depth"`

	HeartbeatInterval        string          `yaml:"heartbeat_interval" koanf:"heartbeat_interval"`
	SendRetryDelay           string          `yaml:"send_retry_delay" koanf:"send_retry_delay"`
	RequestTimeout           string          `yaml:"request_timeout" koanf:"request_timeout"`
	Reconnect                ReconnectConfig `yaml:"reconnect" koanf:"reconnect"`
	StructuralErrorThreshold int             `yaml:"structural_error_threshold" koanf:"structural_error_threshold"`

	Dashboard DashboardConfig `yaml:"dashboard" koanf:"dashboard"`
	Log       LogConfig       `yaml:"log" koanf:"log"`
}

// ReconnectConfig is the backoff schedule of the websocket client.
type ReconnectConfig struct {
	Base        string `yaml:"base" koanf:"base"`
	Cap         string `yaml:"cap" koanf:"cap"`
	MaxAttempts int    `yaml:"max_attempts" koanf:"max_attempts"`
}

// DashboardConfig holds settings for `treewatch serve`.
type DashboardConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string    `yaml:"level" koanf:"level"`
	Format LogFormat `yaml:"format" koanf:"format"`
	// File receives the logs instead of stderr. The terminal UI always
	// logs to a file.
	File string `yaml:"file" koanf:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BackendURL:               "ws://localhost:8000/ws",
		HTTPURL:                  "http://localhost:8000",
		Mode:                     ModeAsk,
		MaxIterations:            15,
		MaxDepth:                 4,
		HeartbeatInterval:        "20s",
		SendRetryDelay:           "500ms",
		RequestTimeout:           "5m",
		StructuralErrorThreshold: 3,
		Reconnect: ReconnectConfig{
			Base:        "1s",
			Cap:         "10s",
			MaxAttempts: 8,
		},
		Dashboard: DashboardConfig{
			Port: 8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogConsole,
		},
	}
}
