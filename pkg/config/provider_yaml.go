package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// YAML representations of the configuration sections
type DatabaseYAML struct {
	ConnectionString string `yaml:"connection_string"`
	AutoMigrate      bool   `yaml:"auto_migrate,omitempty"`
}

type RESTServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

type CacheYAML struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	TTL      string `yaml:"ttl,omitempty"`
}

type QueueYAML struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers,omitempty"`
	RequestTopic string   `yaml:"request_topic,omitempty"`
	ResultTopic  string   `yaml:"result_topic,omitempty"`
	GroupID      string   `yaml:"group_id,omitempty"`
	Workers      int      `yaml:"workers,omitempty"`
}

type AnalysisYAML struct {
	DefaultChannel   string  `yaml:"default_channel,omitempty"`
	E1Percent        float64 `yaml:"e1_percent,omitempty"`
	PathLength       float64 `yaml:"path_length,omitempty"`
	SmoothingSeconds int     `yaml:"smoothing_seconds,omitempty"`
	ReferencePhase   string  `yaml:"reference_phase,omitempty"`
	DefaultTiter     float64 `yaml:"default_titer,omitempty"`
	MaxParallelRuns  int     `yaml:"max_parallel_runs,omitempty"`
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	return parseYAML(cfgFile)
}

func parseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Database DatabaseYAML   `yaml:"database"`
		REST     RESTServerYAML `yaml:"rest,omitempty"`
		Cache    CacheYAML      `yaml:"cache,omitempty"`
		Queue    QueueYAML      `yaml:"queue,omitempty"`
		Analysis AnalysisYAML   `yaml:"analysis,omitempty"`
	}

	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	return &ConfigData{
		Database: DatabaseData{
			ConnectionString: yamlConfig.Database.ConnectionString,
			AutoMigrate:      yamlConfig.Database.AutoMigrate,
		},
		REST: RESTServerData{
			Cert:       yamlConfig.REST.Cert,
			Key:        yamlConfig.REST.Key,
			Port:       yamlConfig.REST.Port,
			ListenAddr: yamlConfig.REST.ListenAddr,
		},
		Cache: CacheData{
			Enabled:  yamlConfig.Cache.Enabled,
			Addr:     yamlConfig.Cache.Addr,
			Password: yamlConfig.Cache.Password,
			DB:       yamlConfig.Cache.DB,
			TTL:      yamlConfig.Cache.TTL,
		},
		Queue: QueueData{
			Enabled:      yamlConfig.Queue.Enabled,
			Brokers:      yamlConfig.Queue.Brokers,
			RequestTopic: yamlConfig.Queue.RequestTopic,
			ResultTopic:  yamlConfig.Queue.ResultTopic,
			GroupID:      yamlConfig.Queue.GroupID,
			Workers:      yamlConfig.Queue.Workers,
		},
		Analysis: AnalysisData{
			DefaultChannel:   yamlConfig.Analysis.DefaultChannel,
			E1Percent:        yamlConfig.Analysis.E1Percent,
			PathLength:       yamlConfig.Analysis.PathLength,
			SmoothingSeconds: yamlConfig.Analysis.SmoothingSeconds,
			ReferencePhase:   yamlConfig.Analysis.ReferencePhase,
			DefaultTiter:     yamlConfig.Analysis.DefaultTiter,
			MaxParallelRuns:  yamlConfig.Analysis.MaxParallelRuns,
		},
	}, nil
}

// IsReadOnly returns true as YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
