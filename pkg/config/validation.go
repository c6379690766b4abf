package config

import (
	"fmt"
	"reflect"
	"strings"
)

const redactedValue = "***"

// String returns the full configuration as indented key/value lines.
func (c *Config) String() string {
	return formatStruct(reflect.ValueOf(c).Elem(), reflect.Value{}, "")
}

// Redacted is like String but masks every leaf that is set in secrets, as
// returned by LoadWithSecrets. Credentials in the main config are always masked.
func (c *Config) Redacted(secrets *Config) string {
	mask := reflect.Value{}
	if secrets != nil {
		mask = reflect.ValueOf(secrets).Elem()
	}
	return formatStruct(reflect.ValueOf(c).Elem(), mask, "")
}

func formatStruct(v, mask reflect.Value, prefix string) string {
	var sb strings.Builder
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		if !value.CanInterface() {
			continue
		}

		var maskValue reflect.Value
		if mask.IsValid() {
			maskValue = mask.Field(i)
		}

		name := strings.ToLower(field.Name)
		if tag := field.Tag.Get("mapstructure"); tag != "" && tag != "-" {
			name = tag
		}

		switch value.Kind() {
		case reflect.Struct:
			fmt.Fprintf(&sb, "%s%s:\n", prefix, name)
			sb.WriteString(formatStruct(value, maskValue, prefix+"  "))
		case reflect.Slice:
			if value.Len() == 0 {
				fmt.Fprintf(&sb, "%s%s: []\n", prefix, name)
				continue
			}
			fmt.Fprintf(&sb, "%s%s:\n", prefix, name)
			for j := 0; j < value.Len(); j++ {
				fmt.Fprintf(&sb, "%s  - %v\n", prefix, value.Index(j).Interface())
			}
		default:
			display := value.Interface()
			if isSecretField(name) && !value.IsZero() || shouldRedact(maskValue) {
				display = redactedValue
			}
			fmt.Fprintf(&sb, "%s%s: %v\n", prefix, name, display)
		}
	}

	return sb.String()
}

func isSecretField(name string) bool {
	return strings.HasSuffix(name, "secret_access_key") || strings.HasSuffix(name, "session_token")
}

func shouldRedact(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return !v.IsZero()
	case reflect.Slice, reflect.Map:
		return v.Len() > 0
	default:
		return false
	}
}
