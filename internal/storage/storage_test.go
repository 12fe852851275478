package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	v, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Empty(t, v, "absent key reads as empty")

	require.NoError(t, s.Set(ctx, KeyToken, "abc.def.ghi"))
	require.NoError(t, s.Set(ctx, KeyBaseURL, "http://api.test"))

	v, err = s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", v)

	require.NoError(t, s.Delete(ctx, KeyToken))
	v, err = s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Empty(t, v)

	// deleting twice is fine
	require.NoError(t, s.Delete(ctx, KeyToken))

	v, err = s.Get(ctx, KeyBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test", v, "other keys survive a delete")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	f, err := NewFile(path)
	require.NoError(t, err)
	exerciseStore(t, f)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreSeesExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	a, err := NewFile(path)
	require.NoError(t, err)
	b, err := NewFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Set(ctx, KeyToken, "from-a"))

	v, err := b.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "from-a", v)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml"), 0o600))

	f, err := NewFile(path)
	require.NoError(t, err)
	_, err = f.Get(context.Background(), KeyToken)
	assert.ErrorContains(t, err, "parsing state")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	r, err := NewRedis(context.Background(), RedisOptions{Addr: mr.Addr(), Prefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	exerciseStore(t, r)

	v, err := mr.Get("test:" + KeyBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test", v, "keys are namespaced by prefix")
}

func TestRedisStoreDefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)

	r, err := NewRedis(context.Background(), RedisOptions{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	require.NoError(t, r.Set(context.Background(), KeyToken, "t"))
	assert.True(t, mr.Exists(DefaultRedisPrefix+KeyToken))
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), RedisOptions{Addr: addr})
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	assert.NoError(t, closeFn())

	s, _, err = Open(ctx, Options{StateFile: filepath.Join(t.TempDir(), "s.yaml")})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s, "file is the default backend")

	mr := miniredis.RunT(t)
	s, closeFn, err = Open(ctx, Options{Backend: BackendRedis, Redis: RedisOptions{Addr: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, s)
	assert.NoError(t, closeFn())

	_, _, err = Open(ctx, Options{Backend: "etcd"})
	assert.ErrorContains(t, err, `unknown storage backend "etcd"`)
}
