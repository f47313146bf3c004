package structures

import (
	"net/http"
	"time"
)

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type Route struct {
	Url     string
	Handler http.Handler
}

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type Persistence struct {
	SnapshotPath string        `yaml:"snapshotPath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
}

type BaselineConfig struct {
	Dir string `yaml:"dir" validate:"required|unixPath"`
}

// SourceConfig describes the upstream MediaWiki Action API endpoint.
type SourceConfig struct {
	ApiUrl    string        `yaml:"apiUrl" validate:"required|fullUrl"`
	UserAgent string        `yaml:"userAgent" validate:"required"`
	Timeout   time.Duration `yaml:"timeout" validate:"required|min:1"`
	PageSize  int           `yaml:"pageSize"`
}

type SimilarityConfig struct {
	EditWindow       int    `yaml:"editWindow" validate:"required|min:1"`
	DefaultK         int    `yaml:"defaultK"`
	MaxK             int    `yaml:"maxK"`
	MaxNeighbors     int    `yaml:"maxNeighbors"`
	MaxPagesPerFetch int    `yaml:"maxPagesPerFetch"`
	GroupBatchSize   int    `yaml:"groupBatchSize"`
	TemporalOffsets  []int  `yaml:"temporalOffsets"`
	Namespaces       []int  `yaml:"namespaces"`
	DefaultStart     string `yaml:"defaultStart" validate:"required"`
	EarliestStart    string `yaml:"earliestStart" validate:"required"`
}

// FollowupConfig holds the URL templates for follow-up investigation links.
// The two-user templates take (queried user, neighbor) in that order.
type FollowupConfig struct {
	SelfUrl                string `yaml:"selfUrl"`
	EditorInteractUrl      string `yaml:"editorInteractUrl"`
	InteractionTimelineUrl string `yaml:"interactionTimelineUrl"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	WebServer   Server           `yaml:"webServer"`
	Logger      LoggerConfig     `yaml:"logger"`
	Persistence Persistence      `yaml:"persistence"`
	Baseline    BaselineConfig   `yaml:"baseline"`
	Source      SourceConfig     `yaml:"source"`
	Similarity  SimilarityConfig `yaml:"similarity"`
	Followup    FollowupConfig   `yaml:"followup"`
	Cache       CacheConfig      `yaml:"cache"`
	Metrics     MetricsConfig    `yaml:"metrics"`
}
