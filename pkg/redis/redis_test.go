package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, prefix string) (*miniredis.Miniredis, RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	adapter, err := NewRedisAdapter(t.Name(), prefix, &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return mr, adapter
}

func TestRedisAdapter_KeysArePrefixed(t *testing.T) {
	mr, adapter := newTestAdapter(t, "btcinv:")

	require.NoError(t, adapter.Set("k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("btcinv:k"))

	got, err := adapter.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	n, err := adapter.Exist("k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, adapter.Del("k"))
	_, err = adapter.Get("k")
	assert.ErrorIs(t, err, NilError)
}

func TestRedisAdapter_SetNXAndDelIfEquals(t *testing.T) {
	mr, adapter := newTestAdapter(t, "")

	ok, err := adapter.SetNX("lock", []byte("a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adapter.SetNX("lock", []byte("b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := adapter.DelIfEquals("lock", []byte("b"))
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, mr.Exists("lock"))

	deleted, err = adapter.DelIfEquals("lock", []byte("a"))
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists("lock"))
}

func TestRedisAdapter_Streams(t *testing.T) {
	_, adapter := newTestAdapter(t, "p:")

	require.NoError(t, adapter.XGroupCreateMkStream("events", "g", "0"))
	id, err := adapter.XAdd("events", map[string]interface{}{"data": "x"})
	require.NoError(t, err)

	n, err := adapter.XLen("events")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	msgs, err := adapter.XReadGroup("g", "c1", "events", ">", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "x", msgs[0].Values["data"])

	pending, err := adapter.XPending("events", "g")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	claimed, err := adapter.XClaim("events", "g", "c2", 0, id)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, adapter.XAck("events", "g", id))
	pending, err = adapter.XPending("events", "g")
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestNewRedisAdapter_ReusesConnectionByName(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := &goredis.UniversalOptions{Addrs: []string{mr.Addr()}}

	a, err := NewRedisAdapter(t.Name(), "", opts)
	require.NoError(t, err)
	b, err := NewRedisAdapter(t.Name(), "other:", opts)
	require.NoError(t, err)
	assert.Same(t, a, b)
}
