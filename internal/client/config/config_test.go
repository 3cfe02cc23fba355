package config

import (
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/backup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "schoolkeeper.db", c.LocalDBPath)
	assert.Equal(t, 5*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 3*time.Second, c.ProbeTimeout)
	assert.True(t, c.AutoSync)
	assert.Equal(t, "info", c.LogLevel)
	assert.Empty(t, c.MetricsAddr)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "schoolkeeper.db", cfg.LocalDBPath)
	assert.Equal(t, 5*time.Second, cfg.OnlineCheckInterval)
}

func TestBackup(t *testing.T) {
	c := Config{S3Region: "r", S3RootUser: "u", S3RootPassword: "p", S3BaseEndpoint: "e", S3Bucket: "b"}
	assert.Equal(t, backup.Config{Region: "r", User: "u", Password: "p", Endpoint: "e", Bucket: "b"}, c.Backup())
}
