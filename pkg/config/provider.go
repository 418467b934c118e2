package config

import (
	"errors"
	"fmt"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Database DatabaseData   `json:"database"`
	REST     RESTServerData `json:"rest"`
	Cache    CacheData      `json:"cache"`
	Queue    QueueData      `json:"queue"`
	Analysis AnalysisData   `json:"analysis"`
}

// DatabaseData points at the PostgreSQL results store.
type DatabaseData struct {
	ConnectionString string `json:"connection_string"`
	AutoMigrate      bool   `json:"auto_migrate,omitempty"`
}

type RESTServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// CacheData configures the Redis result cache. TTL is a Go duration string.
type CacheData struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	TTL      string `json:"ttl,omitempty"`
}

// TTLDuration returns the parsed TTL. Validate guarantees it parses.
func (c CacheData) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// QueueData configures the Kafka analysis worker.
type QueueData struct {
	Enabled      bool     `json:"enabled"`
	Brokers      []string `json:"brokers,omitempty"`
	RequestTopic string   `json:"request_topic,omitempty"`
	ResultTopic  string   `json:"result_topic,omitempty"`
	GroupID      string   `json:"group_id,omitempty"`
	Workers      int      `json:"workers,omitempty"`
}

// AnalysisData holds the defaults applied to analysis requests.
type AnalysisData struct {
	DefaultChannel   string  `json:"default_channel,omitempty"`
	E1Percent        float64 `json:"e1_percent,omitempty"`
	PathLength       float64 `json:"path_length,omitempty"`
	SmoothingSeconds int     `json:"smoothing_seconds,omitempty"`
	ReferencePhase   string  `json:"reference_phase,omitempty"`
	DefaultTiter     float64 `json:"default_titer,omitempty"`
	MaxParallelRuns  int     `json:"max_parallel_runs,omitempty"`
}

// Defaults
const (
	DefaultListenAddr     = "0.0.0.0"
	DefaultHTTPPort       = 8080
	DefaultCacheTTL       = "15m"
	DefaultRequestTopic   = "chromatrace.requests"
	DefaultResultTopic    = "chromatrace.results"
	DefaultGroupID        = "chromatrace-workers"
	DefaultQueueWorkers   = 2
	DefaultChannel        = "uv_1_280"
	DefaultE1Percent      = 1.0
	DefaultPathLength     = 0.2
	DefaultReferencePhase = "Sample Application"
	DefaultTiter          = 1.0
	DefaultParallelRuns   = 4
)

// Validate fills unset fields with defaults and rejects values that cannot
// work. A smoothing window below 10 is accepted and disables smoothing.
func (c *ConfigData) Validate() error {
	var errs []error

	if c.Database.ConnectionString == "" {
		errs = append(errs, errors.New("database.connection_string is required"))
	}

	if c.REST.ListenAddr == "" {
		c.REST.ListenAddr = DefaultListenAddr
	}
	if c.REST.Port == 0 {
		c.REST.Port = DefaultHTTPPort
	}
	if c.REST.Port < 0 || c.REST.Port > 65535 {
		errs = append(errs, fmt.Errorf("rest.port %d is out of range", c.REST.Port))
	}
	if (c.REST.Cert == "") != (c.REST.Key == "") {
		errs = append(errs, errors.New("rest.cert and rest.key must be set together"))
	}

	if c.Cache.TTL == "" {
		c.Cache.TTL = DefaultCacheTTL
	}
	if d, err := time.ParseDuration(c.Cache.TTL); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl %q is not a positive duration", c.Cache.TTL))
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		errs = append(errs, errors.New("cache.addr is required when the cache is enabled"))
	}

	if c.Queue.RequestTopic == "" {
		c.Queue.RequestTopic = DefaultRequestTopic
	}
	if c.Queue.ResultTopic == "" {
		c.Queue.ResultTopic = DefaultResultTopic
	}
	if c.Queue.GroupID == "" {
		c.Queue.GroupID = DefaultGroupID
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = DefaultQueueWorkers
	}
	if c.Queue.Workers < 0 {
		errs = append(errs, fmt.Errorf("queue.workers %d must be positive", c.Queue.Workers))
	}
	if c.Queue.Enabled && len(c.Queue.Brokers) == 0 {
		errs = append(errs, errors.New("queue.brokers is required when the queue is enabled"))
	}

	a := &c.Analysis
	if a.DefaultChannel == "" {
		a.DefaultChannel = DefaultChannel
	}
	if a.E1Percent == 0 {
		a.E1Percent = DefaultE1Percent
	}
	if a.E1Percent < 0 {
		errs = append(errs, fmt.Errorf("analysis.e1_percent %v must not be negative", a.E1Percent))
	}
	if a.PathLength == 0 {
		a.PathLength = DefaultPathLength
	}
	if a.PathLength < 0 {
		errs = append(errs, fmt.Errorf("analysis.path_length %v must not be negative", a.PathLength))
	}
	if a.SmoothingSeconds < 0 {
		errs = append(errs, fmt.Errorf("analysis.smoothing_seconds %d must not be negative", a.SmoothingSeconds))
	}
	if a.ReferencePhase == "" {
		a.ReferencePhase = DefaultReferencePhase
	}
	if a.DefaultTiter == 0 {
		a.DefaultTiter = DefaultTiter
	}
	if a.DefaultTiter < 0 {
		errs = append(errs, fmt.Errorf("analysis.default_titer %v must not be negative", a.DefaultTiter))
	}
	if a.MaxParallelRuns <= 0 {
		a.MaxParallelRuns = DefaultParallelRuns
	}

	return errors.Join(errs...)
}
