package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportNats   = "nats"
	TransportMemory = "memory"

	BackendElasticsearch = "elasticsearch"
	BackendClickHouse    = "clickhouse"
)

var (
	ErrUnknownTransport = errors.New("unknown stream transport")
	ErrUnknownBackend   = errors.New("unknown persistence backend")
)

// StreamConfig describes the broker and the two topics spans and records travel on.
type StreamConfig struct {
	Transport         string `yaml:"transport"`
	URL               string `yaml:"url"`
	ApplicationID     string `yaml:"application_id"`
	TopicTraces       string `yaml:"topic_traces"`
	TopicRecords      string `yaml:"topic_records"`
	SchemaRegistryURL string `yaml:"schema_registry_url"`
	Partitions        int    `yaml:"partitions"`
	QueueSize         int    `yaml:"queue_size"`
}

type ReceiverConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	DedupeTTL     time.Duration `yaml:"dedupe_ttl"`
}

type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
	Refresh   string   `yaml:"refresh"`
}

type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type PersistenceConfig struct {
	Backend       string              `yaml:"backend"`
	Timeout       time.Duration       `yaml:"timeout"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
}

type QueryServerConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// Config is the top-level configuration struct for every reconstructor subcommand.
type Config struct {
	Stream      StreamConfig      `yaml:"stream"`
	Receiver    ReceiverConfig    `yaml:"receiver"`
	Persistence PersistenceConfig `yaml:"persistence"`
	QueryServer QueryServerConfig `yaml:"query_server"`
}

// LoadConfig reads the configuration from a YAML file, fills in defaults and validates it.
// An empty path yields the defaults.
func LoadConfig(filePath string) (*Config, error) {
	var cfg Config
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	setDefault(&c.Stream.Transport, TransportNats)
	setDefault(&c.Stream.URL, "nats://localhost:4222")
	setDefault(&c.Stream.ApplicationID, "landscape-reconstructor")
	setDefault(&c.Stream.TopicTraces, "explorviz-spans")
	setDefault(&c.Stream.TopicRecords, "explorviz-records")
	if c.Stream.Partitions <= 0 {
		c.Stream.Partitions = 4
	}
	if c.Stream.QueueSize <= 0 {
		c.Stream.QueueSize = 128
	}

	setDefault(&c.Receiver.ListenAddress, ":4317")
	if c.Receiver.DedupeTTL <= 0 {
		c.Receiver.DedupeTTL = 10 * time.Minute
	}

	setDefault(&c.Persistence.Backend, BackendElasticsearch)
	if c.Persistence.Timeout <= 0 {
		c.Persistence.Timeout = 10 * time.Second
	}
	if len(c.Persistence.Elasticsearch.Addresses) == 0 {
		c.Persistence.Elasticsearch.Addresses = []string{"http://localhost:9200"}
	}
	setDefault(&c.Persistence.Elasticsearch.Index, "landscape_records")
	setDefault(&c.Persistence.Elasticsearch.Refresh, "false")
	setDefault(&c.Persistence.ClickHouse.Host, "localhost")
	if c.Persistence.ClickHouse.Port == 0 {
		c.Persistence.ClickHouse.Port = 9000
	}
	setDefault(&c.Persistence.ClickHouse.Database, "default")
	setDefault(&c.Persistence.ClickHouse.Username, "default")

	setDefault(&c.QueryServer.ListenAddress, ":8082")
}

func (c *Config) Validate() error {
	switch c.Stream.Transport {
	case TransportNats, TransportMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.Stream.Transport)
	}
	switch c.Persistence.Backend {
	case BackendElasticsearch, BackendClickHouse:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Persistence.Backend)
	}
	if c.Stream.TopicTraces == c.Stream.TopicRecords {
		return fmt.Errorf("traces and records topics must differ, both are %q", c.Stream.TopicRecords)
	}
	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
