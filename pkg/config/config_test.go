package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 2, c.Fusion.MinSourceCount)
	assert.Equal(t, 720*time.Hour, c.Fusion.MaxPriceAge)
	assert.True(t, c.Fusion.EnableValidation)
	assert.Equal(t, 3.0, c.Fusion.MADThreshold)
	assert.Equal(t, time.Hour, c.Cache.TTL)
	assert.Equal(t, "memory", c.Cache.Backend)
	assert.Equal(t, "sqlite", c.Storage.Backend)
	assert.Equal(t, 3*time.Second, c.Fanout.ProviderTimeout)
	assert.Equal(t, "@every 30m", c.Refresh.Schedule)
}

func TestParse_Providers(t *testing.T) {
	c, err := Parse([]byte(`
environment: test
providers:
  - name: gov_stats
    url: http://stats.local/quote
    trust: 0.95
  - name: web_scrape
    url: http://scraper.local/quote
    timeout: 1s
`))
	require.NoError(t, err)
	require.Len(t, c.Providers, 2)
	assert.Equal(t, 3*time.Second, c.Providers[0].Timeout)
	assert.Equal(t, 2, c.Providers[0].Attempts)
	assert.Equal(t, time.Second, c.Providers[1].Timeout)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad cache backend":  "cache:\n  backend: memcached\n",
		"postgres no dsn":    "storage:\n  backend: postgres\n",
		"kafka no brokers":   "kafka:\n  enabled: true\n",
		"duplicate provider": "providers:\n  - {name: a, url: 'http://a'}\n  - {name: a, url: 'http://b'}\n",
		"provider no url":    "providers:\n  - {name: a}\n",
		"timeout > deadline": "fanout:\n  provider_timeout: 10s\n  deadline: 5s\n",
	}
	for name, y := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(y))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: dev\n"), 0o644))

	t.Setenv("HTTP_PORT", "9191")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STORAGE_BACKEND", "none")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, c.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "none", c.Storage.Backend)
}

func TestParse_ExplicitFalseSurvivesDefaults(t *testing.T) {
	c, err := Parse([]byte("fusion:\n  enable_validation: false\n"))
	require.NoError(t, err)
	assert.False(t, c.Fusion.EnableValidation)
	assert.True(t, c.Fusion.EnableBrandPrices)
}

func TestLoad_SampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Len(t, c.Providers, 3)
	assert.Equal(t, "tomato", c.Normalizer.Aliases["domates"])
	assert.Equal(t, 2*time.Second, c.Normalizer.Timeout)
	assert.Equal(t, "snappy", c.Kafka.Producer.Compression)
	assert.Equal(t, 0.95, c.Fusion.TrustPriors["gov_stats"])
}
