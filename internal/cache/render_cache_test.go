package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRenderCacheGetSet(t *testing.T) {
	rc := NewRenderCache(10, time.Hour)
	defer rc.Stop()

	_, ok := rc.Get("# hi")
	require.False(t, ok)

	rc.Set("# hi", "<h1>hi</h1>")
	out, ok := rc.Get("# hi")
	require.True(t, ok)
	require.Equal(t, "<h1>hi</h1>", out)

	stats := rc.Stats()
	require.Equal(t, int64(1), stats["hits"])
	require.Equal(t, int64(1), stats["misses"])
	require.Equal(t, int64(len("<h1>hi</h1>")), stats["size"])
}

func TestRenderCacheEvictsLeastRecentlyUsed(t *testing.T) {
	rc := NewRenderCache(2, time.Hour)
	defer rc.Stop()

	rc.Set("a", "A")
	time.Sleep(2 * time.Millisecond)
	rc.Set("b", "B")
	time.Sleep(2 * time.Millisecond)
	_, ok := rc.Get("a") // a is now newer than b
	require.True(t, ok)

	rc.Set("c", "C")
	require.Equal(t, 2, rc.Len())
	_, ok = rc.Get("b")
	require.False(t, ok)
	_, ok = rc.Get("a")
	require.True(t, ok)
}

func TestRenderCacheExpiry(t *testing.T) {
	rc := NewRenderCache(10, 10*time.Millisecond)
	defer rc.Stop()

	rc.Set("x", "X")
	require.Eventually(t, func() bool { return rc.Len() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := rc.Get("x")
	require.False(t, ok)
}

func TestRenderCacheStopIsIdempotent(t *testing.T) {
	rc := NewRenderCache(1, 0)
	rc.Stop()
	rc.Stop()
}
