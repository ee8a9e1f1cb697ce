package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestScopedInheritsFields(t *testing.T) {
	logs := observe(t)

	ctx, _ := Scoped(context.Background(), RunID("r-1"))
	ctx, l := Scoped(ctx, AccountID(7), Step("purging_content"))
	l.Info("step done")
	From(ctx).Info("again")

	require.Equal(t, 2, logs.Len())
	for _, e := range logs.All() {
		m := e.ContextMap()
		assert.Equal(t, "r-1", m["run_id"])
		assert.Equal(t, int64(7), m["account_id"])
		assert.Equal(t, "purging_content", m["step"])
	}
}

func TestFromWithoutScopeUsesSingleton(t *testing.T) {
	logs := observe(t)
	From(context.Background()).Info("plain")
	Named("app").Info("named")
	S().Infof("%d accounts eligible", 3)

	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "app", logs.All()[1].LoggerName)
	assert.Equal(t, "3 accounts eligible", logs.All()[2].Message)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}
