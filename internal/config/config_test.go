package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<API REQUEST_DUMP="true">
  <CONTEXT>
    <PORT>9090</PORT>
    <HOST>127.0.0.1</HOST>
    <CORS>
      <ORIGIN>http://localhost:3000</ORIGIN>
      <ORIGIN>https://guard.example.org</ORIGIN>
    </CORS>
  </CONTEXT>
  <DB>
    <DRIVER>postgres</DRIVER>
    <HOST>db</HOST>
    <PORT>5432</PORT>
    <NAMES GUARD="guard"/>
    <USERNAME>guard</USERNAME>
    <PASSWORD TYPE="PLAIN">secret</PASSWORD>
    <POOL>
      <MAX_OPEN_CONNS>10</MAX_OPEN_CONNS>
    </POOL>
  </DB>
  <WIZARD>
    <AUTOSAVE_QUIET_MS>1500</AUTOSAVE_QUIET_MS>
  </WIZARD>
  <RATE_LIMIT ENABLED="true">
    <REQUESTS_PER_MINUTE>12</REQUESTS_PER_MINUTE>
  </RATE_LIMIT>
</API>`

func TestParse(t *testing.T) {
	t.Setenv("REPORT_API_URL", "")
	t.Setenv("DATABASE_PASSWORD", "")
	t.Setenv("REDIS_ADDR", "")

	c, err := Parse([]byte(sampleXML))
	require.NoError(t, err)

	assert.True(t, c.RequestDump)
	assert.Equal(t, "127.0.0.1:9090", c.Addr())
	assert.Equal(t, []string{"http://localhost:3000", "https://guard.example.org"}, c.Context.AllowOrigins)
	assert.Equal(t, "guard", c.DB.Names.GUARD)
	assert.Equal(t, "secret", c.DB.Password.Value)
	assert.Equal(t, 10, c.DB.Pool.MaxOpenConns)
	assert.Equal(t, 1500*time.Millisecond, c.AutosaveQuiet())
	assert.True(t, c.RateLimit.Enabled)
	assert.Equal(t, 12.0, c.RateLimit.RequestsPerMin)

	// defaults
	assert.Equal(t, 5, c.RateLimit.Burst)
	assert.Equal(t, "@every 5m", c.Wizard.EvictSchedule)
	assert.Equal(t, 30*time.Minute, c.EvictIdle())
	assert.Equal(t, "logs", c.Logging.Dir)
	assert.Equal(t, 300*time.Second, c.CacheTTL())
	assert.Empty(t, c.Wizard.ReportAPIURL)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("REPORT_API_URL", " http://reports.internal:8080 ")
	t.Setenv("DATABASE_PASSWORD", "from-env")
	t.Setenv("REDIS_ADDR", "redis:6379")

	c, err := Parse([]byte(sampleXML))
	require.NoError(t, err)
	assert.Equal(t, "http://reports.internal:8080", c.Wizard.ReportAPIURL)
	assert.Equal(t, "from-env", c.DB.Password.Value)
	assert.Equal(t, "redis:6379", c.Cache.Addr)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("<API><DB><DRIVER>oracle</DRIVER></DB></API>"))
	assert.Error(t, err)

	_, err = Parse([]byte("<API><DB><DRIVER>postgres</DRIVER></DB></API>"))
	assert.Error(t, err)

	_, err = Parse([]byte("not xml"))
	assert.Error(t, err)
}

func TestParse_MemoryDriverNeedsNoHost(t *testing.T) {
	c, err := Parse([]byte("<API><DB><DRIVER>memory</DRIVER></DB></API>"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", c.Addr())
	assert.Equal(t, []string{"*"}, c.Context.AllowOrigins)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, os.WriteFile(path, []byte("<API><DB><DRIVER>memory</DRIVER></DB></API>"), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Same(t, c, GetConfig())

	// later calls return the cached configuration
	again, err := LoadConfig("does-not-exist.xml")
	require.NoError(t, err)
	assert.Same(t, c, again)
}
