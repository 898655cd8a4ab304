package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, prefix string) (*miniredis.Miniredis, RedisAdapter) {
	mr := miniredis.RunT(t)
	a, err := NewRedisAdapter(t.Name()+"-"+mr.Addr(), prefix, &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return mr, a
}

func TestAdapter_Keys(t *testing.T) {
	mr, a := newTestAdapter(t, "app:")

	ok, err := a.SetNX("lock", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.SetNX("lock", []byte("2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("app:lock"))
	v, err := a.Get("lock")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	n, err := a.Exist("lock")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, a.Del("lock"))
	_, err = a.Get("lock")
	assert.True(t, errors.Is(err, NilError))
	require.NoError(t, a.Ping(context.Background()))
}

func TestAdapter_CachedByName(t *testing.T) {
	mr, a := newTestAdapter(t, "")
	b, err := NewRedisAdapter(t.Name()+"-"+mr.Addr(), "ignored:", &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Same(t, a, GetRedis(t.Name()+"-"+mr.Addr()))
}

func TestAdapter_Streams(t *testing.T) {
	_, a := newTestAdapter(t, "")
	require.NoError(t, a.XGroupCreateMkStream("s", "g", "0"))

	// empty stream: the read returns at once
	start := time.Now()
	_, err := a.XReadGroup("g", "c1", "s", ">", 10)
	assert.True(t, errors.Is(err, NilError))
	assert.Less(t, time.Since(start), time.Second)

	id, err := a.XAdd("s", map[string]interface{}{"data": "x"})
	require.NoError(t, err)

	msgs, err := a.XReadGroup("g", "c1", "s", ">", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "x", msgs[0].Values["data"])

	pending, err := a.XPending("s", "g")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	claimed, err := a.XClaim("s", "g", "c2", 0, id)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	ext, err := a.XPendingExt("s", "g", "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, ext, 1)
	assert.Equal(t, "c2", ext[0].Consumer)

	require.NoError(t, a.XAck("s", "g", id))
	ext, err = a.XPendingExt("s", "g", "-", "+", 10)
	require.NoError(t, err)
	assert.Empty(t, ext)

	n, err := a.XLen("s")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
