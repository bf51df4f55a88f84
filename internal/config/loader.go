package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LookupFunc returns the raw value for an environment-style key, or "" if unset.
type LookupFunc func(key string) string

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return load(os.Getenv)
}

// LoadFrom reads configuration through v, which layers bound flags,
// environment variables and a config file. Each setting is read from its
// flat key, the lowercase env tag ("import_batch_size"), and then from its
// nested key built from the yaml tags ("import.batch_size"), so a config
// file may use either shape.
func LoadFrom(v *viper.Viper) (*Config, error) {
	nested := NestedKeys()
	return load(func(key string) string {
		if value := v.GetString(strings.ToLower(key)); value != "" {
			return value
		}
		if path, ok := nested[key]; ok {
			return v.GetString(path)
		}
		return ""
	})
}

// NestedKeys maps each env tag to its "section.field" key from the yaml
// tags. Fields hidden from yaml have no nested key.
func NestedKeys() map[string]string {
	keys := make(map[string]string)
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		sectionName := yamlName(section)
		if sectionName == "" || section.Type.Kind() != reflect.Struct {
			continue
		}
		for j := 0; j < section.Type.NumField(); j++ {
			field := section.Type.Field(j)
			env := field.Tag.Get("env")
			name := yamlName(field)
			if env == "" || name == "" {
				continue
			}
			keys[env] = sectionName + "." + name
		}
	}
	return keys
}

func yamlName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func load(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Keys returns every configuration key in lowercase, in declaration order.
// Used to bind environment variables into viper.
func Keys() []string {
	var keys []string
	collectKeys(reflect.TypeOf(Config{}), &keys)
	return keys
}

func collectKeys(t reflect.Type, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			collectKeys(field.Type, keys)
			continue
		}
		if env := field.Tag.Get("env"); env != "" {
			*keys = append(*keys, strings.ToLower(env))
		}
		if alt := field.Tag.Get("envAlt"); alt != "" {
			*keys = append(*keys, strings.ToLower(alt))
		}
	}
}

// loadStruct recursively populates struct fields from the lookup function.
func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary key, then alternate
		value := lookup(envName)
		if value == "" && envAlt != "" {
			value = lookup(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required setting %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Import validation
	switch c.Import.Mode {
	case "update", "replace":
	default:
		errs = append(errs, fmt.Sprintf("IMPORT_MODE (%q) must be one of: update, replace", c.Import.Mode))
	}
	if c.Import.BatchSize < 1 || c.Import.BatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("IMPORT_BATCH_SIZE (%d) must be 1-1000", c.Import.BatchSize))
	}
	if c.Import.SkipLines < 0 {
		errs = append(errs, "IMPORT_SKIP_LINES must be non-negative")
	}
	if len([]rune(c.Import.Delimiter)) != 1 {
		errs = append(errs, fmt.Sprintf("IMPORT_DELIMITER (%q) must be a single character", c.Import.Delimiter))
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	validEncodings := map[string]bool{"utf-8": true, "utf8": true, "windows-1251": true, "cp1251": true}
	if !validEncodings[strings.ToLower(c.Import.Encoding)] {
		errs = append(errs, fmt.Sprintf("IMPORT_ENCODING (%q) must be one of: utf-8, windows-1251", c.Import.Encoding))
	}
	if c.Import.Timeout <= 0 {
		errs = append(errs, "IMPORT_TIMEOUT must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}

	// Cache validation
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, "CACHE_TTL must be positive when caching is enabled")
	}
	if c.Cache.ReportTTL <= 0 {
		errs = append(errs, "CACHE_REPORT_TTL must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Import: {Mode: %q, DryRun: %v, BatchSize: %d, MaxFileSize: %d}, ",
		c.Import.Mode, c.Import.DryRun, c.Import.BatchSize, c.Import.MaxFileSize))
	b.WriteString(fmt.Sprintf("Cache: {Enabled: %v, TTL: %s}, ", c.Cache.Enabled, c.Cache.TTL))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, APIKeys: %d configured}, ",
		c.Server.Host, c.Server.Port, len(c.Server.APIKeyList())))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
