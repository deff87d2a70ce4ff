package config

import "time"

// DefaultConfig returns the gateway's baseline configuration, before any
// YAML file or environment override is applied.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Catalog:   DefaultCatalogConfig(),
		Probe:     DefaultProbeConfig(),
		Dispatch:  DefaultDispatchConfig(),
		Auth:      AuthConfig{},
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute, // streaming completions can run long
		ShutdownTimeout: 15 * time.Second,
	}
}

func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Path:         "catalog.yaml",
		ReloadPeriod: 0,
	}
}

func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Enabled:          true,
		Interval:         30 * time.Second,
		Timeout:          5 * time.Second,
		FailureThreshold: 3,
		Concurrency:      8,
	}
}

func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		MaxAttempts:    3,
		RequestTimeout: 2 * time.Minute,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "llm-gateway",
		SampleRate:   0.1,
	}
}
