package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags to configuration keys. Flags win over
// the environment, but only when set explicitly.
var flagKeys = map[string]string{
	"port":       "http.port",
	"mgmt-port":  "management.port",
	"db-type":    "database.type",
	"db-url":     "database.url",
	"query-mode": "query.mode",
	"log-level":  "observability.log_level",
	"log-format": "observability.log_format",
}

// RegisterFlags adds the overridable configuration flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Int("port", 0, "public HTTP port (overrides http.port)")
	flags.Int("mgmt-port", 0, "management HTTP port (overrides management.port)")
	flags.String("db-type", "", "record store: mongodb, dynamodb or memory")
	flags.String("db-url", "", "record store connection string")
	flags.String("query-mode", "", "query parameter handling: lenient or strict")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: json or text")
}

// WithFlags makes explicitly set flags from RegisterFlags override every other source.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	l.flags = flags
	return l
}

func (l *ViperLoader) applyFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := l.flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}
