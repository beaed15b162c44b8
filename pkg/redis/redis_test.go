package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, prefix string) (*miniredis.Miniredis, RedisAdapter) {
	mr := miniredis.RunT(t)
	a, err := NewRedisAdapter(testConnName(t, mr), prefix, &Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return mr, a
}

// testConnName is unique per server so repeated runs of a test never reuse
// an adapter bound to a stopped miniredis.
func testConnName(t *testing.T, mr *miniredis.Miniredis) string {
	return t.Name() + "-" + mr.Addr()
}

func TestAdapter_KeyValue(t *testing.T) {
	mr, a := newTestAdapter(t, "dv:")
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("dv:k"))

	got, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := a.SetNX(ctx, "k", []byte("other"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := a.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, mr.TTL("dv:counter"))

	require.NoError(t, a.Del(ctx, "k", "counter"))
	exists, err := a.Exist(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)

	_, err = a.Get(ctx, "k")
	assert.ErrorIs(t, err, NilError)
}

func TestAdapter_Streams(t *testing.T) {
	_, a := newTestAdapter(t, "")
	ctx := context.Background()

	require.NoError(t, a.XGroupCreateMkStream(ctx, "s", "g", "0"))
	id, err := a.XAdd(ctx, "s", map[string]interface{}{"data": "x"})
	require.NoError(t, err)

	msgs, err := a.XReadGroup(ctx, "g", "c1", "s", ">", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)

	_, err = a.XReadGroup(ctx, "g", "c1", "s", ">", 10)
	assert.ErrorIs(t, err, NilError)

	pending, err := a.XPendingExt(ctx, "s", "g", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c1", pending[0].Consumer)
	assert.Equal(t, int64(1), pending[0].RetryCount)

	claimed, err := a.XAutoClaim(ctx, "s", "g", "c2", time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed, "entry is not idle long enough")

	claimed, err = a.XAutoClaim(ctx, "s", "g", "c2", 0, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, id, claimed[0].ID)

	pending, err = a.XPendingExt(ctx, "s", "g", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].Consumer)
	assert.Equal(t, int64(2), pending[0].RetryCount)

	require.NoError(t, a.XAck(ctx, "s", "g", id))
	count, err := a.XPendingCount(ctx, "s", "g")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	n, err := a.XLen(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetRedis(t *testing.T) {
	mr, a := newTestAdapter(t, "")
	assert.Same(t, a, GetRedis(testConnName(t, mr)))
}

func TestAdapter_XAutoClaimIsExclusive(t *testing.T) {
	_, a := newTestAdapter(t, "")
	ctx := context.Background()

	require.NoError(t, a.XGroupCreateMkStream(ctx, "s", "g", "0"))
	_, err := a.XAdd(ctx, "s", map[string]interface{}{"data": "x"})
	require.NoError(t, err)
	_, err = a.XReadGroup(ctx, "g", "c1", "s", ">", 10)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	first, err := a.XAutoClaim(ctx, "s", "g", "c2", 50*time.Millisecond, 10)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := a.XAutoClaim(ctx, "s", "g", "c3", 50*time.Millisecond, 10)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestNewRedisAdapter_DistinctServers(t *testing.T) {
	ctx := context.Background()
	mr1, a1 := newTestAdapter(t, "")
	mr2, a2 := newTestAdapter(t, "")

	assert.NotSame(t, a1, a2)
	require.NoError(t, a2.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr2.Exists("k"))
	assert.False(t, mr1.Exists("k"))
}
