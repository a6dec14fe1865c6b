package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Blobtosql.System.Logging
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
