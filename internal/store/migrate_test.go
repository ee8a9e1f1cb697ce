package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationTarget(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AdapterConfig
		wantURL string
		wantFS  bool
		wantErr bool
	}{
		{"postgres url", AdapterConfig{Name: "postgres", DSN: "postgres://u:p@db:5432/app?sslmode=disable"}, "pgx5://u:p@db:5432/app?sslmode=disable", true, false},
		{"postgresql url", AdapterConfig{Name: "postgres", DSN: "postgresql://u@db/app"}, "pgx5://u@db/app", true, false},
		{"postgres keyword dsn", AdapterConfig{Name: "postgres", DSN: "host=db user=u"}, "", false, true},
		{"mysql", AdapterConfig{Name: "mysql", DSN: "u:p@tcp(db:3306)/app"}, "mysql://u:p@tcp(db:3306)/app?multiStatements=true", true, false},
		{"mysql with params", AdapterConfig{Name: "mysql", DSN: "u:p@tcp(db:3306)/app?parseTime=true"}, "mysql://u:p@tcp(db:3306)/app?parseTime=true&multiStatements=true", true, false},
		{"memory", AdapterConfig{Name: "memory"}, "", false, false},
		{"unknown", AdapterConfig{Name: "mongo"}, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, url, err := migrationTarget(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, url)
			assert.Equal(t, tt.wantFS, src != nil)
		})
	}
}

func TestMigrateMemoryIsNoop(t *testing.T) {
	require.NoError(t, Migrate(AdapterConfig{Name: "memory"}, MigrateUp))
}
