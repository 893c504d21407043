package observability

import (
	"testing"

	"github.com/smallbiznis/pawnshop/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDerivesProviderConfigs(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:           " ",
		AppVersion:        "1.2.0",
		Environment:       "production",
		LogLevel:          "info",
		OTLPEnabled:       true,
		OTLPEndpoint:      " collector:4317 ",
		OTLPProtocol:      "grpc",
		OTLPSamplingRatio: 0.5,
	})
	assert.Equal(t, "pawnshop", cfg.ServiceName)
	assert.False(t, cfg.Debug())

	tracingCfg := cfg.TracingConfig()
	assert.True(t, tracingCfg.Enabled)
	assert.Equal(t, "collector:4317", tracingCfg.ExporterEndpoint)
	assert.Equal(t, 0.5, tracingCfg.SamplingRatio)

	metricsCfg := cfg.MetricsConfig()
	assert.Equal(t, tracingCfg.ExporterEndpoint, metricsCfg.ExporterEndpoint)
	assert.Equal(t, "production", metricsCfg.Environment)

	logCfg := cfg.LoggerConfig()
	assert.False(t, logCfg.IncludeStackOnError)
	assert.Equal(t, "1.2.0", logCfg.Version)
}

func TestDebug(t *testing.T) {
	assert.True(t, Config{Environment: "local"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "DEBUG"}.Debug())
	assert.False(t, Config{Environment: "staging"}.Debug())
}
