package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/training-engine/internal/config"
)

type progress struct {
	TotalXP int      `json:"total_xp"`
	Badges  []string `json:"badges"`
}

// exerciseStore runs the shared contract against any backend
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := "test-" + uuid.NewString()

	require.NoError(t, s.Ping(ctx))

	_, found, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, key, []byte("first")))
	require.NoError(t, s.Save(ctx, key, []byte("second")))
	data, found, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", string(data))

	assert.ErrorIs(t, s.Save(ctx, "", []byte("x")), ErrEmptyKey)

	in := progress{TotalXP: 420, Badges: []string{"panel-inspector"}}
	require.NoError(t, SaveJSON(ctx, s, key+"-json", in))
	var out progress
	ok, err := LoadJSON(ctx, s, key+"-json", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.Save(context.Background(), "k", nil), ErrClosed)
}

func TestMemoryStoreCopiesPayload(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Save(context.Background(), "k", buf))
	buf[0] = 'z'

	data, _, err := s.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trainer.db")
	s, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trainer.db")

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, SaveJSON(ctx, s, "progress", progress{TotalXP: 7}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	var out progress
	ok, err := LoadJSON(ctx, s, "progress", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, out.TotalXP)
}

func TestLoadJSONRejectsFutureVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	raw, err := json.Marshal(Envelope{Version: SchemaVersion + 1, Data: json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "progress", raw))

	var out progress
	ok, err := LoadJSON(ctx, s, "progress", &out)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.False(t, ok)
}

func TestLoadJSONRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, "progress", []byte("not json")))

	var out progress
	_, err := LoadJSON(ctx, s, "progress", &out)
	assert.Error(t, err)

	ok, err := LoadJSON(ctx, s, "absent", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StorageConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, config.StorageConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StorageConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := Migrations().Open("001_init.sql")
	require.NoError(t, err)
	data.Close()
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TRAINER_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TRAINER_TEST_DATABASE_DSN not set")
	}
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, PostgresConfig{DSN: dsn})
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)

	custom, err := NewPostgresStore(ctx, PostgresConfig{DSN: dsn, Table: "trainer state test"})
	require.NoError(t, err)
	defer custom.Close()
	exerciseStore(t, custom)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TRAINER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TRAINER_TEST_REDIS_ADDR not set")
	}

	s, err := NewRedisStore(context.Background(), RedisConfig{Address: addr, Prefix: "trainer-test:"})
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}
