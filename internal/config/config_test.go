package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", c.Storage.Primary.Driver)
	assert.Equal(t, c.Storage.Primary, c.Storage.Replica)
	assert.Equal(t, 90*24*time.Hour, c.Purge.GracePeriod)
	assert.Equal(t, 2*time.Minute, c.Purge.AccountTimeout)
	assert.Equal(t, 500, c.Purge.BatchSize)
	assert.Equal(t, "00:00", c.Scheduler.DailyAt)
	assert.Equal(t, time.Hour, c.Scheduler.LockTTL)
	assert.Equal(t, 3, c.Blob.Retry.Attempts)
	assert.Equal(t, ":9090", c.Ops.Addr)
}

func TestLoadYAMLWithReplica(t *testing.T) {
	p := writeYAML(t, `
app:
  env: prod
storage:
  primary:
    driver: postgres
    dsn: postgres://u:p@primary:5432/app
    max_open_conns: 20
  replica:
    driver: postgres
    dsn: postgres://u:p@replica:5432/app
    conn_max_lifetime: 5m
purge:
  grace_period: 720h
scheduler:
  enabled: true
  daily_at: "03:30"
  location: UTC
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "prod", c.Log.Env)
	assert.Equal(t, 20, c.Storage.Primary.MaxOpenConns)
	assert.Equal(t, "postgres://u:p@replica:5432/app", c.Storage.Replica.DSN)
	assert.Equal(t, 10, c.Storage.Replica.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, c.Storage.Replica.ConnMaxLifetime)
	assert.Equal(t, 30*24*time.Hour, c.Purge.GracePeriod)
	assert.True(t, c.Scheduler.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_PRIMARY_DRIVER", "mysql")
	t.Setenv("STORAGE_PRIMARY_DSN", "u:p@tcp(db:3306)/app")
	t.Setenv("PURGE_GRACE_DAYS", "7")
	t.Setenv("SCHEDULER_DAILY_AT", "01:15")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mysql", c.Storage.Primary.Driver)
	assert.Equal(t, "mysql", c.Storage.Replica.Driver, "replica defaults to primary")
	assert.Equal(t, 7*24*time.Hour, c.Purge.GracePeriod)
	assert.Equal(t, "01:15", c.Scheduler.DailyAt)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"STORAGE_PRIMARY_DRIVER": "mongo"}},
		{"postgres without dsn", map[string]string{"STORAGE_PRIMARY_DRIVER": "postgres"}},
		{"bad daily_at", map[string]string{"SCHEDULER_DAILY_AT": "25:99"}},
		{"redis lock without addr", map[string]string{"SCHEDULER_LOCK_KIND": "redis"}},
		{"s3 without bucket", map[string]string{"BLOB_KIND": "s3"}},
		{"negative grace", map[string]string{"PURGE_GRACE_PERIOD": "-1h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("23:05")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 5, m)

	_, _, err = ParseClock("noon")
	assert.Error(t, err)
}
