package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ViperLoader loads Config from defaults, a file, a secrets file, the
// environment and explicitly set flags, in increasing precedence.
type ViperLoader struct {
	configFile string
	envPrefix  string
	flags      *pflag.FlagSet
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "MOVIES")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v, err := l.newViper()
	if err != nil {
		return nil, err
	}
	return l.decode(v)
}

func (l *ViperLoader) newViper() (*viper.Viper, error) {
	v := viper.New()
	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}
	return v, nil
}

func (l *ViperLoader) decode(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(l.envPrefix)
	l.bindLegacyEnvVars()
	l.bindEnvVars(v)
	if err := l.applyFlags(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// HTTP
	v.BindEnv("http.port", l.prefixedEnv("HTTP_PORT"), "PORT")
	v.BindEnv("http.read_timeout", l.prefixedEnv("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.prefixedEnv("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.prefixedEnv("HTTP_IDLE_TIMEOUT"))
	v.BindEnv("http.max_request_size", l.prefixedEnv("HTTP_MAX_REQUEST_SIZE"))
	v.BindEnv("http.cors.enabled", l.prefixedEnv("HTTP_CORS_ENABLED"))
	v.BindEnv("http.cors.allow_origins", l.prefixedEnv("HTTP_CORS_ALLOW_ORIGINS"))
	v.BindEnv("http.compression.enabled", l.prefixedEnv("HTTP_COMPRESSION_ENABLED"))
	v.BindEnv("http.compression.min_size", l.prefixedEnv("HTTP_COMPRESSION_MIN_SIZE"))
	v.BindEnv("http.rate_limit.enabled", l.prefixedEnv("HTTP_RATE_LIMIT_ENABLED"))
	v.BindEnv("http.rate_limit.requests_per_second", l.prefixedEnv("HTTP_RATE_LIMIT_RPS"))
	v.BindEnv("http.rate_limit.burst", l.prefixedEnv("HTTP_RATE_LIMIT_BURST"))

	// Management
	v.BindEnv("management.enabled", l.prefixedEnv("MGMT_ENABLED"))
	v.BindEnv("management.port", l.prefixedEnv("MGMT_PORT"))
	v.BindEnv("management.read_timeout", l.prefixedEnv("MGMT_READ_TIMEOUT"))
	v.BindEnv("management.write_timeout", l.prefixedEnv("MGMT_WRITE_TIMEOUT"))

	// Database
	v.BindEnv("database.type", l.prefixedEnv("DB_TYPE"))
	v.BindEnv("database.url", l.prefixedEnv("DB_URL"))
	v.BindEnv("database.database_name", l.prefixedEnv("DB_DATABASE_NAME"))
	v.BindEnv("database.collection", l.prefixedEnv("DB_COLLECTION"))
	v.BindEnv("database.max_open_conns", l.prefixedEnv("DB_MAX_OPEN_CONNS"))
	v.BindEnv("database.query_timeout", l.prefixedEnv("DB_QUERY_TIMEOUT"))
	v.BindEnv("database.connect_timeout", l.prefixedEnv("DB_CONNECT_TIMEOUT"))
	v.BindEnv("database.region", l.prefixedEnv("DB_REGION"))
	v.BindEnv("database.endpoint", l.prefixedEnv("DB_ENDPOINT"))
	v.BindEnv("database.access_key_id", l.prefixedEnv("DB_ACCESS_KEY_ID"))
	v.BindEnv("database.secret_access_key", l.prefixedEnv("DB_SECRET_ACCESS_KEY"))
	v.BindEnv("database.session_token", l.prefixedEnv("DB_SESSION_TOKEN"))

	// Query
	v.BindEnv("query.mode", l.prefixedEnv("QUERY_MODE"))
	v.BindEnv("query.default_limit", l.prefixedEnv("QUERY_DEFAULT_LIMIT"))
	v.BindEnv("query.max_limit", l.prefixedEnv("QUERY_MAX_LIMIT"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("observability.request_timeout", l.prefixedEnv("REQUEST_TIMEOUT"))

	// Swagger
	v.BindEnv("swagger.enabled", l.prefixedEnv("SWAGGER_ENABLED"))

	// Ingest
	v.BindEnv("ingest.transport", l.prefixedEnv("INGEST_TRANSPORT"))
	v.BindEnv("ingest.operation_timeout", l.prefixedEnv("INGEST_OPERATION_TIMEOUT"))
	v.BindEnv("ingest.queue_url", l.prefixedEnv("INGEST_QUEUE_URL"))
	v.BindEnv("ingest.region", l.prefixedEnv("INGEST_REGION"))
	v.BindEnv("ingest.endpoint", l.prefixedEnv("INGEST_ENDPOINT"))
	v.BindEnv("ingest.access_key_id", l.prefixedEnv("INGEST_ACCESS_KEY_ID"))
	v.BindEnv("ingest.secret_access_key", l.prefixedEnv("INGEST_SECRET_ACCESS_KEY"))
	v.BindEnv("ingest.session_token", l.prefixedEnv("INGEST_SESSION_TOKEN"))
	v.BindEnv("ingest.wait_time_seconds", l.prefixedEnv("INGEST_WAIT_TIME_SECONDS"))
	v.BindEnv("ingest.max_messages", l.prefixedEnv("INGEST_MAX_MESSAGES"))
	v.BindEnv("ingest.visibility_timeout", l.prefixedEnv("INGEST_VISIBILITY_TIMEOUT"))
	v.BindEnv("ingest.brokers", l.prefixedEnv("INGEST_BROKERS"))
	v.BindEnv("ingest.topic", l.prefixedEnv("INGEST_TOPIC"))
	v.BindEnv("ingest.group_id", l.prefixedEnv("INGEST_GROUP_ID"))
	v.BindEnv("ingest.url", l.prefixedEnv("INGEST_URL"))
	v.BindEnv("ingest.exchange", l.prefixedEnv("INGEST_EXCHANGE"))
	v.BindEnv("ingest.queue_name", l.prefixedEnv("INGEST_QUEUE_NAME"))
	v.BindEnv("ingest.routing_key", l.prefixedEnv("INGEST_ROUTING_KEY"))
}

// bindLegacyEnvVars maps alternative env names to the canonical ones when the
// canonical variable is absent.
func (l *ViperLoader) bindLegacyEnvVars() {
	aliases := []struct {
		canonical string
		legacy    string
	}{
		{l.prefixedEnv("DB_URL"), l.prefixedEnv("MONGO_URI")},
		{l.prefixedEnv("DB_URL"), "MONGO_URI"},
		{l.prefixedEnv("DB_URL"), l.prefixedEnv("DATABASE_URL")},
		{l.prefixedEnv("DB_TYPE"), l.prefixedEnv("DATABASE_TYPE")},
		{l.prefixedEnv("DB_DATABASE_NAME"), l.prefixedEnv("DATABASE_NAME")},
		{l.prefixedEnv("MGMT_PORT"), l.prefixedEnv("MANAGEMENT_PORT")},
	}

	for _, alias := range aliases {
		if _, ok := os.LookupEnv(alias.canonical); ok {
			continue
		}
		if value, ok := os.LookupEnv(alias.legacy); ok {
			_ = os.Setenv(alias.canonical, value)
		}
	}
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = "MOVIES"
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.max_request_size", cfg.HTTP.MaxRequestSize)
	v.SetDefault("http.cors.enabled", cfg.HTTP.CORS.Enabled)
	v.SetDefault("http.cors.allow_origins", cfg.HTTP.CORS.AllowOrigins)
	v.SetDefault("http.compression.enabled", cfg.HTTP.Compression.Enabled)
	v.SetDefault("http.compression.min_size", cfg.HTTP.Compression.MinSize)
	v.SetDefault("http.rate_limit.enabled", cfg.HTTP.RateLimit.Enabled)
	v.SetDefault("http.rate_limit.requests_per_second", cfg.HTTP.RateLimit.RequestsPerSecond)
	v.SetDefault("http.rate_limit.burst", cfg.HTTP.RateLimit.Burst)

	v.SetDefault("management.enabled", cfg.Management.Enabled)
	v.SetDefault("management.port", cfg.Management.Port)
	v.SetDefault("management.read_timeout", cfg.Management.ReadTimeout)
	v.SetDefault("management.write_timeout", cfg.Management.WriteTimeout)

	v.SetDefault("database.type", cfg.Database.Type)
	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.database_name", cfg.Database.DatabaseName)
	v.SetDefault("database.collection", cfg.Database.Collection)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.query_timeout", cfg.Database.QueryTimeout)
	v.SetDefault("database.connect_timeout", cfg.Database.ConnectTimeout)
	v.SetDefault("database.region", cfg.Database.Region)
	v.SetDefault("database.endpoint", cfg.Database.Endpoint)
	v.SetDefault("database.access_key_id", cfg.Database.AccessKeyID)
	v.SetDefault("database.secret_access_key", cfg.Database.SecretAccessKey)
	v.SetDefault("database.session_token", cfg.Database.SessionToken)

	v.SetDefault("query.mode", cfg.Query.Mode)
	v.SetDefault("query.default_limit", cfg.Query.DefaultLimit)
	v.SetDefault("query.max_limit", cfg.Query.MaxLimit)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.request_timeout", cfg.Observability.RequestTimeout)

	v.SetDefault("swagger.enabled", cfg.Swagger.Enabled)

	v.SetDefault("ingest.transport", cfg.Ingest.Transport)
	v.SetDefault("ingest.operation_timeout", cfg.Ingest.OperationTimeout)
	v.SetDefault("ingest.queue_url", cfg.Ingest.QueueURL)
	v.SetDefault("ingest.region", cfg.Ingest.Region)
	v.SetDefault("ingest.endpoint", cfg.Ingest.Endpoint)
	v.SetDefault("ingest.access_key_id", cfg.Ingest.AccessKeyID)
	v.SetDefault("ingest.secret_access_key", cfg.Ingest.SecretAccessKey)
	v.SetDefault("ingest.session_token", cfg.Ingest.SessionToken)
	v.SetDefault("ingest.wait_time_seconds", cfg.Ingest.WaitTimeSeconds)
	v.SetDefault("ingest.max_messages", cfg.Ingest.MaxMessages)
	v.SetDefault("ingest.visibility_timeout", cfg.Ingest.VisibilityTimeout)
	v.SetDefault("ingest.brokers", cfg.Ingest.Brokers)
	v.SetDefault("ingest.topic", cfg.Ingest.Topic)
	v.SetDefault("ingest.group_id", cfg.Ingest.GroupID)
	v.SetDefault("ingest.url", cfg.Ingest.URL)
	v.SetDefault("ingest.exchange", cfg.Ingest.Exchange)
	v.SetDefault("ingest.queue_name", cfg.Ingest.QueueName)
	v.SetDefault("ingest.routing_key", cfg.Ingest.RoutingKey)
}

// Validate validates the configuration and returns every problem found.
// Enumerated values are normalized to lower case.
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))
	cfg.Query.Mode = strings.ToLower(strings.TrimSpace(cfg.Query.Mode))
	cfg.Ingest.Transport = strings.ToLower(strings.TrimSpace(cfg.Ingest.Transport))
	cfg.Ingest.Brokers = normalizeStringSlice(cfg.Ingest.Brokers)
	cfg.HTTP.CORS.AllowOrigins = normalizeStringSlice(cfg.HTTP.CORS.AllowOrigins)

	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", cfg.HTTP.Port))
	}
	if cfg.HTTP.MaxRequestSize < 0 {
		errs = append(errs, errors.New("http.max_request_size cannot be negative"))
	}
	if cfg.HTTP.CORS.Enabled && len(cfg.HTTP.CORS.AllowOrigins) == 0 {
		errs = append(errs, errors.New("http.cors.allow_origins is required when CORS is enabled"))
	}
	if cfg.HTTP.Compression.MinSize < 0 {
		errs = append(errs, errors.New("http.compression.min_size cannot be negative"))
	}
	if cfg.HTTP.RateLimit.Enabled && (cfg.HTTP.RateLimit.RequestsPerSecond <= 0 || cfg.HTTP.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("http.rate_limit requires a positive requests_per_second and burst"))
	}
	if cfg.Management.Enabled {
		if cfg.Management.Port < 1 || cfg.Management.Port > 65535 {
			errs = append(errs, fmt.Errorf("management.port must be between 1 and 65535, got %d", cfg.Management.Port))
		}
		if cfg.Management.Port == cfg.HTTP.Port {
			errs = append(errs, errors.New("management.port must differ from http.port"))
		}
	}

	validDatabases := []string{DatabaseTypeMongoDB, DatabaseTypeDynamoDB, DatabaseTypeMemory}
	if !contains(validDatabases, cfg.Database.Type) {
		errs = append(errs, fmt.Errorf("invalid database.type: %s (must be one of: %v)", cfg.Database.Type, validDatabases))
	}
	switch cfg.Database.Type {
	case DatabaseTypeMongoDB:
		if cfg.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for MongoDB"))
		}
		if cfg.Database.DatabaseName == "" {
			errs = append(errs, errors.New("database.database_name is required for MongoDB"))
		}
	case DatabaseTypeDynamoDB:
		if cfg.Database.Region == "" {
			errs = append(errs, errors.New("database.region is required for DynamoDB"))
		}
	}
	if cfg.Database.Type != DatabaseTypeMemory && cfg.Database.Collection == "" {
		errs = append(errs, errors.New("database.collection is required"))
	}
	if cfg.Database.MaxOpenConns < 0 {
		errs = append(errs, errors.New("database.max_open_conns cannot be negative"))
	}
	if cfg.Database.QueryTimeout < 0 || cfg.Database.ConnectTimeout < 0 {
		errs = append(errs, errors.New("database timeouts cannot be negative"))
	}

	if !contains([]string{QueryModeLenient, QueryModeStrict}, cfg.Query.Mode) {
		errs = append(errs, fmt.Errorf("invalid query.mode: %s (must be one of: lenient, strict)", cfg.Query.Mode))
	}
	if cfg.Query.DefaultLimit < 1 {
		errs = append(errs, errors.New("query.default_limit must be greater than 0"))
	}
	if cfg.Query.MaxLimit < 0 {
		errs = append(errs, errors.New("query.max_limit cannot be negative"))
	}
	if cfg.Query.MaxLimit > 0 && cfg.Query.DefaultLimit > cfg.Query.MaxLimit {
		errs = append(errs, errors.New("query.default_limit cannot exceed query.max_limit"))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, strings.ToLower(cfg.Observability.LogLevel)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: %v)", cfg.Observability.LogLevel, validLevels))
	}
	validFormats := []string{"json", "text"}
	if !contains(validFormats, strings.ToLower(cfg.Observability.LogFormat)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", cfg.Observability.LogFormat, validFormats))
	}
	if cfg.Observability.TracingSampleRate < 0 || cfg.Observability.TracingSampleRate > 1 {
		errs = append(errs, errors.New("observability.tracing_sample_rate must be between 0 and 1"))
	}
	if cfg.Observability.TracingEnabled && cfg.Observability.TracingEndpoint == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}
	if cfg.Observability.RequestTimeout < 0 {
		errs = append(errs, errors.New("observability.request_timeout cannot be negative"))
	}

	validTransports := []string{TransportSQS, TransportKafka, TransportRabbitMQ}
	if !contains(validTransports, cfg.Ingest.Transport) {
		errs = append(errs, fmt.Errorf("invalid ingest.transport: %s (must be one of: %v)", cfg.Ingest.Transport, validTransports))
	}
	if cfg.Ingest.WaitTimeSeconds < 0 || cfg.Ingest.WaitTimeSeconds > 20 {
		errs = append(errs, errors.New("ingest.wait_time_seconds must be between 0 and 20"))
	}
	if cfg.Ingest.MaxMessages < 0 || cfg.Ingest.MaxMessages > 10 {
		errs = append(errs, errors.New("ingest.max_messages must be between 0 and 10"))
	}

	return errors.Join(errs...)
}

// ValidateIngest checks the settings the selected ingest transport needs.
// They are only required by the ingest command, so Load does not enforce them.
func (c *Config) ValidateIngest() error {
	var errs []error
	switch c.Ingest.Transport {
	case TransportSQS:
		if c.Ingest.QueueURL == "" {
			errs = append(errs, errors.New("ingest.queue_url is required for SQS"))
		}
		if c.Ingest.Region == "" {
			errs = append(errs, errors.New("ingest.region is required for SQS"))
		}
	case TransportKafka:
		if len(c.Ingest.Brokers) == 0 {
			errs = append(errs, errors.New("ingest.brokers is required for Kafka"))
		}
		if c.Ingest.Topic == "" {
			errs = append(errs, errors.New("ingest.topic is required for Kafka"))
		}
	case TransportRabbitMQ:
		if c.Ingest.URL == "" {
			errs = append(errs, errors.New("ingest.url is required for RabbitMQ"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported ingest.transport %q", c.Ingest.Transport))
	}
	return errors.Join(errs...)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func normalizeStringSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
