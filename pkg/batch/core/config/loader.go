package config

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig      // EmbeddedConfig contains the raw bytes of the configuration file.
	Expander       EnvironmentExpander `optional:"true"`
	EnvFilePath    string              `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig resolves the configuration in this order, later sources winning:
// NewConfig defaults, the embedded YAML (after ${VAR} expansion), environment variables.
// The .env file is loaded into the process environment first.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	raw, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment variables in embedded config", err, exception.CategoryConfig)
	}

	// Decoding onto the defaults keeps every key the YAML omits, and lets
	// explicit zero values such as `enabled: false` override a default.
	cfg := NewConfig()
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, exception.CategoryConfig)
		}
	}
	if cfg.Blobtosql.AdapterConfigs == nil {
		cfg.Blobtosql.AdapterConfigs = map[string]interface{}{}
	}
	if cfg.Blobtosql.StorageConfigs == nil {
		cfg.Blobtosql.StorageConfigs = map[string]interface{}{}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, exception.CategoryConfig)
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads, validates and provides *Config.
// It also applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Blobtosql.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Blobtosql.System.Logging.Level)

	if err := cfg.Validate(); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid configuration", err, exception.CategoryConfig)
	}
	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML, the .env file and environment variables
// without validating it.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, nil)
}

// DecodeSection decodes one named entry of a free-form configuration map (database or storage)
// into out, matching keys against `yaml` tags. String values are converted to the target type,
// which is needed for entries that were set from environment variables.
func DecodeSection(section map[string]interface{}, name string, out interface{}) error {
	raw, ok := section[name]
	if !ok {
		return fmt.Errorf("configuration '%s' not found", name)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder for '%s': %w", name, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode configuration '%s': %w", name, err)
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// The variable name is the upper-cased path of `yaml` tags joined by "_",
// e.g. BLOBTOSQL_BATCH_BATCH_SIZE.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch {
		case field.Kind() == reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Interface:
			// Example: BLOBTOSQL_DATABASE_WORKLOAD_HOST sets database.workload.host
			loadMapSectionFromEnv(field, envVarName+"_")
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapSectionFromEnv merges PREFIX_<NAME>_<KEY>=value variables into a map of named sections.
// The first segment after the prefix is the section name; the rest, lower-cased, is the key.
func loadMapSectionFromEnv(mapField reflect.Value, prefix string) {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyParts := strings.SplitN(parts[0], "_", 2)
		if len(keyParts) != 2 || keyParts[0] == "" || keyParts[1] == "" {
			continue
		}
		sectionName := strings.ToLower(keyParts[0])
		key := strings.ToLower(keyParts[1])

		section := map[string]interface{}{}
		if existing := mapField.MapIndex(reflect.ValueOf(sectionName)); existing.IsValid() {
			if m, ok := existing.Interface().(map[string]interface{}); ok {
				section = m
			}
		}
		section[key] = parts[1]
		mapField.SetMapIndex(reflect.ValueOf(sectionName), reflect.ValueOf(section))
	}
}

// setField sets the value of a reflect.Value field based on its kind.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintValue, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(uintValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
