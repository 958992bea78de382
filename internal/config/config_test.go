package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"5368709120", 5368709120, false},
		{"50MB", 50 * 1024 * 1024, false},
		{"50M", 50 * 1024 * 1024, false},
		{"1G", 1024 * 1024 * 1024, false},
		{"1GB", 1024 * 1024 * 1024, false},
		{"", 0, true},
		{"nope", 0, true},
		{"5XB", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseByteSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestGetFetchTimeoutDefault(t *testing.T) {
	t.Setenv(EnvFetchTimeout, "")
	assert.Equal(t, DefaultFetchTimeout, GetFetchTimeout())
}

func TestGetFetchTimeoutClamped(t *testing.T) {
	t.Setenv(EnvFetchTimeout, "1ms")
	assert.Equal(t, time.Second, GetFetchTimeout())

	t.Setenv(EnvFetchTimeout, "1h")
	assert.Equal(t, 30*time.Minute, GetFetchTimeout())
}

func TestGetHookTimeoutUnboundedByDefault(t *testing.T) {
	t.Setenv(EnvHookTimeout, "")
	assert.Equal(t, time.Duration(0), GetHookTimeout())
}

func TestGetCacheSizeLimitDefault(t *testing.T) {
	t.Setenv(EnvCacheSizeLimit, "")
	assert.Equal(t, int64(DefaultCacheSizeLimit), GetCacheSizeLimit())
}

func TestGetFanoutConcurrencyInvalid(t *testing.T) {
	t.Setenv(EnvFanoutConcurrency, "not-a-number")
	assert.Equal(t, DefaultFanoutConcurrency, GetFanoutConcurrency())
}

func TestGetPackagerDefault(t *testing.T) {
	t.Setenv(EnvPackager, "")
	assert.Equal(t, DefaultPackager, GetPackager())
}

func TestDefaultConfigHonorsEnv(t *testing.T) {
	t.Setenv(EnvHome, "/tmp/zmake-test-home")
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/zmake-test-home", cfg.HomeDir)
	assert.Equal(t, "/tmp/zmake-test-home/build", cfg.BuildDir)
}
