package bootstrap

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/notify-dispatch/config"
)

func TestPostgresDSN_EscapesCredentials(t *testing.T) {
	dsn := postgresDSN(config.DBConfig{
		Host: "db.internal", Port: 5433, User: "notify", Password: "p@ss/word?",
		Name: "notify", SSLMode: "require",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/word?", pw)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/notify", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestNewRedisClient(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RedisConfig
		wantDesc string
		wantErr  string
	}{
		{name: "direct", cfg: config.RedisConfig{URI: "localhost:6379"}, wantDesc: "localhost:6379"},
		{name: "url", cfg: config.RedisConfig{URI: "redis://:secret@cache:6380/0"}, wantDesc: "cache:6380"},
		{name: "empty uri", cfg: config.RedisConfig{URI: " "}, wantErr: "requires a URI"},
		{
			name:     "cluster nodes",
			cfg:      config.RedisConfig{UseCluster: true, ClusterNodes: []string{"a:1", " ", "b:2"}},
			wantDesc: "cluster:a:1,b:2",
		},
		{name: "cluster uri fallback", cfg: config.RedisConfig{UseCluster: true, URI: "c:3"}, wantDesc: "cluster:c:3"},
		{name: "cluster empty", cfg: config.RedisConfig{UseCluster: true}, wantErr: "at least one address"},
		{
			name:     "sentinel",
			cfg:      config.RedisConfig{UseSentinel: true, SentinelNodes: []string{"s:26379"}, SentinelMasterName: "main"},
			wantDesc: "sentinel:main",
		},
		{name: "sentinel empty", cfg: config.RedisConfig{UseSentinel: true}, wantErr: "sentinel node"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, desc, err := newRedisClient(tt.cfg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = client.Close() })
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}
