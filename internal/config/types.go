package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Monitor  MonitorConfig  `json:"monitor"`
	Debug    *DebugConfig   `json:"debug,omitempty"`
}

// TokenEnv is read when telegram.token is empty.
const TokenEnv = "STATUSWATCH_TELEGRAM_TOKEN"

type TelegramConfig struct {
	Token        string  `json:"token,omitempty"`
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// LogChat is the operator chat receiving WARN+ log records (chat id as string).
	LogChat string `json:"log_chat,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig selects the tenant -> channel store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./statuswatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MonitorConfig controls the status-monitoring engine.
//
// Defaults (when fields are omitted/zero):
//   - schedule: "1m"
//   - fetch_timeout: "20s"
//   - notify_timeout: "30s"
//   - send_rate_per_sec: 20
type MonitorConfig struct {
	// Schedule is a cron expression, Go duration or HH:MM interval.
	Schedule      string `json:"schedule,omitempty"`
	FetchTimeout  string `json:"fetch_timeout,omitempty"`
	NotifyTimeout string `json:"notify_timeout,omitempty"`

	SendRatePerSec int    `json:"send_rate_per_sec,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`

	// Only restricts the built-in catalog to these keys (all when empty).
	Only []string `json:"only,omitempty"`
	// Disable removes built-in or custom services by key.
	Disable []string `json:"disable,omitempty"`

	Services []ServiceConfig `json:"services,omitempty"`
}

// ServiceConfig declares a custom monitored service.
//
// Kind values:
//   - "statuspage": Atlassian Statuspage; URL is the site root or the status.json URL
//   - "json": generic JSON document read with gjson paths
type ServiceConfig struct {
	Key   string `json:"key"`
	Title string `json:"title,omitempty"`
	Kind  string `json:"kind"`
	URL   string `json:"url"`

	// json kind only.
	IndicatorPath string   `json:"indicator_path,omitempty"`
	Healthy       []string `json:"healthy,omitempty"`
	SummaryPath   string   `json:"summary_path,omitempty"`
	DetailPath    string   `json:"detail_path,omitempty"`
}

// DebugConfig controls the optional HTTP server exposing /metrics, /healthz
// and (optionally) /debug/pprof.
//
// Security note: prefer binding to localhost. A non-loopback address needs a
// token or allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:9090"
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
}
