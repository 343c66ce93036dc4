package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Config global configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Redis         RedisConfig         `yaml:"redis"`
	MySQL         MySQLConfig         `yaml:"mysql"`
	Logger        LoggerConfig        `yaml:"logger"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Risk          RiskConfig          `yaml:"risk"`
	Queue         QueueConfig         `yaml:"queue"`
	Notification  NotificationConfig  `yaml:"notification"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	K8s           K8sConfig           `yaml:"k8s"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`    // debug, release
	APIKey string `yaml:"api_key"` // API key for analysis engine authentication (optional, if empty, auth is disabled)
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty addr runs in single-instance mode
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	AutoMigrate bool   `yaml:"auto_migrate"` // create/alter tables on startup
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// AnalysisConfig task queue and dispatcher configuration
type AnalysisConfig struct {
	CallbackBaseURL    string         `yaml:"callback_base_url"`    // base of state/save/failure URLs handed to the engine
	DataBaseURL        string         `yaml:"data_base_url"`        // base of input data URLs (data collection service)
	StaleTaskThreshold int            `yaml:"stale_task_threshold"` // seconds a RUNNING task may go without update before TIMEOUT
	SourceLockTimeout  int            `yaml:"source_lock_timeout"`  // seconds to wait for the per-source lock
	RetentionDays      int            `yaml:"retention_days"`       // terminal tasks older than this are deleted
	Priorities         map[string]int `yaml:"priorities"`           // task type -> priority (lower is served first)
}

// RiskConfig risk ordinal thresholds
type RiskConfig struct {
	ObserveThreshold   float64 `yaml:"observe_threshold"`
	AnomalousThreshold float64 `yaml:"anomalous_threshold"`
	HighThreshold      float64 `yaml:"high_threshold"`
	AnomalyThreshold   float64 `yaml:"anomaly_threshold"`  // overall risk above this opens an anomaly
	HeatmapResolution  int     `yaml:"heatmap_resolution"` // heat-map bucket size (minutes)
}

// QueueConfig asynq configuration for heat-map delivery
type QueueConfig struct {
	Enabled     bool `yaml:"enabled"`
	Concurrency int  `yaml:"concurrency"`
	MaxRetry    int  `yaml:"max_retry"`
}

// NotificationConfig notification configuration
type NotificationConfig struct {
	FeishuWebhookURL string `yaml:"feishu_webhook_url"`
}

// InfluxDBConfig heat-map mirror configuration
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// ElasticsearchConfig raw log index configuration
type ElasticsearchConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"` // raw log record index (pattern)
}

// K8sConfig K8s configuration
type K8sConfig struct {
	Enabled   bool   `yaml:"enabled"`   // whether to resolve deployment hosts from pods
	Namespace string `yaml:"namespace"` // default namespace for host selectors
}

// MetricsConfig prometheus configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ApplyDefaults fills zero values with defaults
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Analysis.StaleTaskThreshold <= 0 {
		c.Analysis.StaleTaskThreshold = 600
	}
	if c.Analysis.SourceLockTimeout <= 0 {
		c.Analysis.SourceLockTimeout = 5
	}
	if c.Analysis.RetentionDays <= 0 {
		c.Analysis.RetentionDays = 10
	}
	if c.Risk.ObserveThreshold == 0 && c.Risk.AnomalousThreshold == 0 && c.Risk.HighThreshold == 0 {
		c.Risk.ObserveThreshold = 0.25
		c.Risk.AnomalousThreshold = 0.5
		c.Risk.HighThreshold = 0.75
	}
	if c.Risk.AnomalyThreshold == 0 {
		c.Risk.AnomalyThreshold = 0.25
	}
	if c.Risk.HeatmapResolution <= 0 {
		c.Risk.HeatmapResolution = 5
	}
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = 10
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Init initializes configuration
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	cfg, err := Parse(data)
	if err != nil {
		return err
	}

	GlobalConfig = cfg
	return nil
}

// Parse decodes a YAML document and applies defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
