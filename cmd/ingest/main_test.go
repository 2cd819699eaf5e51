package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_FILE", "/tmp/cryptoetl-ingest.log")
	t.Setenv("SERVICE_NAME", "")

	cfg := loggerConfig()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "/tmp/cryptoetl-ingest.log", cfg.LogFile)
	assert.Equal(t, serviceName, cfg.ServiceName)
}

func TestLoggerConfig_ServiceNameOverride(t *testing.T) {
	t.Setenv("SERVICE_NAME", "etl-nightly")

	assert.Equal(t, "etl-nightly", loggerConfig().ServiceName)
}

func TestSplitList(t *testing.T) {
	assert.Empty(t, splitList(""))
	assert.Equal(t, []string{"CoinGecko", "LegacyCSV"}, splitList(" CoinGecko, ,LegacyCSV "))
}
