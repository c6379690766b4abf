package config

import "time"

// Database type constants
const (
	// DatabaseTypeMongoDB stores movies in a MongoDB collection
	DatabaseTypeMongoDB = "mongodb"
	// DatabaseTypeDynamoDB stores movies in a DynamoDB table
	DatabaseTypeDynamoDB = "dynamodb"
	// DatabaseTypeMemory keeps movies in process memory
	DatabaseTypeMemory = "memory"
)

// Ingest transport constants
const (
	// TransportSQS consumes an AWS SQS queue
	TransportSQS = "sqs"
	// TransportKafka consumes an Apache Kafka topic
	TransportKafka = "kafka"
	// TransportRabbitMQ consumes a RabbitMQ queue
	TransportRabbitMQ = "rabbitmq"
)

// Query mode constants
const (
	QueryModeLenient = "lenient"
	QueryModeStrict  = "strict"
)

// Config is the root configuration of the movies service
type Config struct {
	Service       ServiceConfig
	HTTP          HTTPConfig
	Management    ManagementConfig
	Database      DatabaseConfig
	Query         QueryConfig
	Observability ObservabilityConfig
	Swagger       SwaggerConfig
	Ingest        IngestConfig
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig configures the public API server
type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxRequestSize int64         `mapstructure:"max_request_size"`

	CORS        CORSConfig        `mapstructure:"cors"`
	Compression CompressionConfig `mapstructure:"compression"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
}

// CORSConfig configures cross-origin access to the public API
type CORSConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	AllowOrigins []string `mapstructure:"allow_origins"` // "*" allows any origin
}

// CompressionConfig configures gzip/brotli response compression
type CompressionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	MinSize int  `mapstructure:"min_size"`
}

// RateLimitConfig configures the per-client token bucket
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ManagementConfig configures the health and metrics server
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig configures the record store
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"` // mongodb, dynamodb, memory
	URL             string        `mapstructure:"url"`
	DatabaseName    string        `mapstructure:"database_name"`
	Collection      string        `mapstructure:"collection"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	SessionToken    string        `mapstructure:"session_token"`
}

// QueryConfig controls how list and search query strings are interpreted
type QueryConfig struct {
	Mode         string `mapstructure:"mode"` // lenient, strict
	DefaultLimit int    `mapstructure:"default_limit"`
	// MaxLimit caps the page size; 0 disables the cap.
	MaxLimit int `mapstructure:"max_limit"`
}

// ObservabilityConfig configures logging, metrics, and tracing
type ObservabilityConfig struct {
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"` // json, text
	TracingEnabled    bool          `mapstructure:"tracing_enabled"`
	TracingSampleRate float64       `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string        `mapstructure:"tracing_endpoint"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// SwaggerConfig configures API documentation
type SwaggerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// IngestConfig configures the queue-driven movie import worker
type IngestConfig struct {
	Transport        string        `mapstructure:"transport"` // sqs, kafka, rabbitmq
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`

	// SQS
	QueueURL          string `mapstructure:"queue_url"`
	Region            string `mapstructure:"region"`
	Endpoint          string `mapstructure:"endpoint"`
	AccessKeyID       string `mapstructure:"access_key_id"`
	SecretAccessKey   string `mapstructure:"secret_access_key"`
	SessionToken      string `mapstructure:"session_token"`
	WaitTimeSeconds   int32  `mapstructure:"wait_time_seconds"`
	MaxMessages       int32  `mapstructure:"max_messages"`
	VisibilityTimeout int32  `mapstructure:"visibility_timeout"`

	// Kafka
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`

	// RabbitMQ
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	QueueName  string `mapstructure:"queue_name"`
	RoutingKey string `mapstructure:"routing_key"`
}

// DefaultConfig returns the configuration used when neither a file nor the
// environment overrides a key.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "movies",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Port:           3000,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxRequestSize: 1 << 20,
			CORS: CORSConfig{
				AllowOrigins: []string{"*"},
			},
			Compression: CompressionConfig{
				Enabled: true,
				MinSize: 1024,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 50,
				Burst:             100,
			},
		},
		Management: ManagementConfig{
			Enabled:      true,
			Port:         9090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Type:           DatabaseTypeMongoDB,
			URL:            "mongodb://localhost:27017",
			DatabaseName:   "movies",
			Collection:     "movies",
			MaxOpenConns:   25,
			QueryTimeout:   10 * time.Second,
			ConnectTimeout: 10 * time.Second,
		},
		Query: QueryConfig{
			Mode:         QueryModeLenient,
			DefaultLimit: 10,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			TracingSampleRate: 0.1,
			TracingEndpoint:   "localhost:4317",
			RequestTimeout:    30 * time.Second,
		},
		Swagger: SwaggerConfig{
			Enabled: true,
		},
		Ingest: IngestConfig{
			Transport:        TransportSQS,
			OperationTimeout: 30 * time.Second,
			WaitTimeSeconds:  20,
			MaxMessages:      10,
			GroupID:          "movies-ingest",
			Exchange:         "movies",
			QueueName:        "movies.ingest",
			RoutingKey:       "movies.create",
		},
	}
}
