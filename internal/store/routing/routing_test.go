package routing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTagIsPrimary(t *testing.T) {
	assert.Equal(t, Primary, CurrentTag(context.Background()))
	assert.Equal(t, 0, Depth(context.Background()))
}

func TestIntentSelectsTag(t *testing.T) {
	tests := []struct {
		intent Intent
		want   Tag
	}{
		{ReadOnly, Replica},
		{ReadWrite, Primary},
		{Intent(42), Primary},
	}
	for _, tt := range tests {
		t.Run(tt.intent.String(), func(t *testing.T) {
			ctx, end := Begin(context.Background(), tt.intent)
			assert.Equal(t, tt.want, CurrentTag(ctx))
			require.NoError(t, end())
			assert.Equal(t, Primary, CurrentTag(ctx), "tag must not leak after end")
		})
	}
}

func TestNestedWriteInsideReadRestoresReplica(t *testing.T) {
	outer, endOuter := Begin(context.Background(), ReadOnly)
	require.Equal(t, Replica, CurrentTag(outer))

	inner, endInner := Begin(outer, ReadWrite)
	assert.Equal(t, Primary, CurrentTag(inner))
	assert.Equal(t, 2, Depth(inner))
	require.NoError(t, endInner())

	assert.Equal(t, Replica, CurrentTag(outer))
	// El contexto interno, si se sigue usando, también ve el tag exterior.
	assert.Equal(t, Replica, CurrentTag(inner))

	require.NoError(t, endOuter())
	assert.Equal(t, Primary, CurrentTag(outer))
}

func TestNestedReadInsideWriteRestoresPrimary(t *testing.T) {
	outer, endOuter := Begin(context.Background(), ReadWrite)
	inner, endInner := Begin(outer, ReadOnly)
	assert.Equal(t, Replica, CurrentTag(inner))
	require.NoError(t, endInner())
	assert.Equal(t, Primary, CurrentTag(outer))
	assert.Equal(t, ReadWrite, CurrentIntent(inner))
	require.NoError(t, endOuter())
}

func TestDeepNesting(t *testing.T) {
	ctx0, end0 := Begin(context.Background(), ReadOnly)
	ctx1, end1 := Begin(ctx0, ReadWrite)
	ctx2, end2 := Begin(ctx1, ReadOnly)
	assert.Equal(t, 3, Depth(ctx2))

	require.NoError(t, end2())
	assert.Equal(t, Primary, CurrentTag(ctx2))
	require.NoError(t, end1())
	assert.Equal(t, Replica, CurrentTag(ctx2))
	require.NoError(t, end0())
	assert.Equal(t, Primary, CurrentTag(ctx2))
}

func TestDoubleEndIsMisuse(t *testing.T) {
	_, end := Begin(context.Background(), ReadOnly)
	require.NoError(t, end())

	err := end()
	var me *MisuseError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, MisuseDoubleEnd, me.Kind)
	assert.Equal(t, Replica, me.Tag)
}

func TestOutOfOrderEndIsMisuse(t *testing.T) {
	outer, endOuter := Begin(context.Background(), ReadOnly)
	inner, endInner := Begin(outer, ReadWrite)

	err := endOuter()
	var me *MisuseError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, MisuseOpenChildren, me.Kind)
	assert.Equal(t, 1, me.Open)

	// El frame exterior queda cerrado igual; el interno sigue vigente hasta su end.
	assert.Equal(t, Primary, CurrentTag(inner))
	require.NoError(t, endInner())
	assert.Equal(t, Primary, CurrentTag(outer))
}

func TestBeginAfterEndUsesLiveParent(t *testing.T) {
	outer, endOuter := Begin(context.Background(), ReadOnly)
	stale, endStale := Begin(outer, ReadWrite)
	require.NoError(t, endStale())

	// Un Begin sobre un contexto cuyo frame ya terminó cuelga del frame vivo.
	again, endAgain := Begin(stale, ReadWrite)
	assert.Equal(t, 2, Depth(again))
	require.NoError(t, endAgain())
	require.NoError(t, endOuter())
}

func TestStrictModePanics(t *testing.T) {
	SetStrict(true)
	defer SetStrict(false)

	_, end := Begin(context.Background(), ReadWrite)
	require.NoError(t, end())
	assert.Panics(t, func() { _ = end() })
}

func TestConcurrentUnitsAreIndependent(t *testing.T) {
	base := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			intent := ReadWrite
			want := Primary
			if i%2 == 0 {
				intent, want = ReadOnly, Replica
			}
			ctx, end := Begin(base, intent)
			defer func() { assert.NoError(t, end()) }()
			assert.Equal(t, want, CurrentTag(ctx))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, Primary, CurrentTag(base))
}
