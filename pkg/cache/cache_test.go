package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/malbeclabs/datachat/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	c, err := New(context.Background(), Config{Logger: logger.Discard(), Store: store})
	require.NoError(t, err)
	require.True(t, c.Enabled())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

type failingStore struct {
	pingErr error
	getErr  error
	setErr  error
	sets    int
}

func (s *failingStore) Get(context.Context, string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return nil, ErrMiss
}

func (s *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	s.sets++
	return s.setErr
}

func (s *failingStore) Ping(context.Context) error { return s.pingErr }
func (s *failingStore) Close() error               { return nil }

func TestKey(t *testing.T) {
	t.Parallel()

	a, err := Key("query", "process_question", "how many orders?")
	require.NoError(t, err)
	b, err := Key("query", "process_question", "how many orders?")
	require.NoError(t, err)
	c, err := Key("query", "process_question", "how many customers?")
	require.NoError(t, err)
	d, err := Key("schema", "process_question", "how many orders?")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "query:"))
	assert.Len(t, strings.TrimPrefix(a, "query:"), 32)
	assert.NotEqual(t, a, d)
	assert.Equal(t, strings.TrimPrefix(a, "query:"), strings.TrimPrefix(d, "schema:"))

	_, err = Key("x", "f", make(chan int))
	require.Error(t, err)
}

func TestNew_DisabledWithoutStore(t *testing.T) {
	t.Parallel()

	c, err := New(context.Background(), Config{Logger: logger.Discard()})
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.False(t, c.Set(context.Background(), "k", []byte("v"), time.Minute))
}

func TestNew_DisabledWhenPingFails(t *testing.T) {
	t.Parallel()

	store := &failingStore{pingErr: errors.New("connection refused")}
	c, err := New(context.Background(), Config{Logger: logger.Discard(), Store: store})
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	calls := 0
	m := &Memo[string]{Cache: c, Prefix: "p", Function: "f", TTL: time.Minute, Codec: StringCodec{}}
	v, err := m.Call(context.Background(), func(context.Context) (string, error) {
		calls++
		return "fresh", nil
	}, "arg")
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, store.sets)
}

func TestNew_RequiresLogger(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestMemo_HitReturnsCachedValue(t *testing.T) {
	t.Parallel()
	c, _ := newRedisCache(t)

	calls := 0
	m := &Memo[map[string]int]{Cache: c, Prefix: "query", Function: "count", TTL: time.Minute, Codec: JSONCodec[map[string]int]{}}
	fn := func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"orders": calls}, nil
	}

	first, err := m.Call(context.Background(), fn, "orders")
	require.NoError(t, err)
	second, err := m.Call(context.Background(), fn, "orders")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	_, err = m.Call(context.Background(), fn, "customers")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMemo_RespectsTTL(t *testing.T) {
	t.Parallel()
	c, mr := newRedisCache(t)

	calls := 0
	m := &Memo[string]{Cache: c, Prefix: "schema", Function: "summary", TTL: time.Hour, Codec: StringCodec{}}
	fn := func(context.Context) (string, error) {
		calls++
		return "summary", nil
	}

	_, err := m.Call(context.Background(), fn)
	require.NoError(t, err)
	mr.FastForward(59 * time.Minute)
	_, err = m.Call(context.Background(), fn)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * time.Minute)
	_, err = m.Call(context.Background(), fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMemo_ErrorsAndVetoedResultsAreNotCached(t *testing.T) {
	t.Parallel()
	c, mr := newRedisCache(t)

	m := &Memo[string]{
		Cache: c, Prefix: "query", Function: "f", TTL: time.Minute, Codec: StringCodec{},
		ShouldCache: func(v string) bool { return v != "partial" },
	}

	boom := errors.New("boom")
	_, err := m.Call(context.Background(), func(context.Context) (string, error) { return "", boom }, "q")
	require.ErrorIs(t, err, boom)

	v, err := m.Call(context.Background(), func(context.Context) (string, error) { return "partial", nil }, "q")
	require.NoError(t, err)
	assert.Equal(t, "partial", v)

	assert.Empty(t, mr.Keys())
}

func TestMemo_SwallowsStoreErrors(t *testing.T) {
	t.Parallel()

	store := &failingStore{getErr: errors.New("read timeout"), setErr: errors.New("write timeout")}
	c, err := New(context.Background(), Config{Logger: logger.Discard(), Store: store})
	require.NoError(t, err)
	require.True(t, c.Enabled())

	m := &Memo[string]{Cache: c, Prefix: "p", Function: "f", TTL: time.Minute, Codec: StringCodec{}}
	v, err := m.Call(context.Background(), func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, store.sets)
}

func TestMemo_CorruptEntryFallsThrough(t *testing.T) {
	t.Parallel()
	c, mr := newRedisCache(t)

	m := &Memo[[]int]{Cache: c, Prefix: "p", Function: "f", TTL: time.Minute, Codec: JSONCodec[[]int]{}}
	key, err := Key("p", "f", "a")
	require.NoError(t, err)
	require.NoError(t, mr.Set(key, "{not json"))

	v, err := m.Call(context.Background(), func(context.Context) ([]int, error) { return []int{1, 2}, nil }, "a")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v)

	raw, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", raw)
}

type portableThing struct{ Name string }

func (p portableThing) ToPortable() ([]byte, error) { return []byte("thing:" + p.Name), nil }

func TestPortableCodec(t *testing.T) {
	t.Parallel()

	codec := PortableCodec[portableThing]{FromPortable: func(b []byte) (portableThing, error) {
		s := string(b)
		if !strings.HasPrefix(s, "thing:") {
			return portableThing{}, errors.New("bad prefix")
		}
		return portableThing{Name: strings.TrimPrefix(s, "thing:")}, nil
	}}

	b, err := codec.Encode(portableThing{Name: "orders"})
	require.NoError(t, err)
	got, err := codec.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "orders", got.Name)

	_, err = codec.Decode([]byte("nope"))
	require.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewMemoryStore(0)
	defer s.Close()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, s.Len())
	require.NoError(t, s.Ping(ctx))
}

func TestRedisStore_Miss(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrMiss)
}
