package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InMemory(t *testing.T) {
	db, err := New(Config{Name: "test_new_in_memory"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "test_new_in_memory", db.Name())
	assert.NoError(t, db.QuickCheck(context.Background()))
	assert.NoError(t, db.HealthCheck(context.Background()))

	_, err = db.Conn().Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	_, err = db.Conn().Exec(`INSERT INTO t (v) VALUES ('a'), ('b')`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestNew_DefaultName(t *testing.T) {
	db, err := New(Config{})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "macrolens", db.Name())
}

func TestNew_DatabasesAreIsolatedByName(t *testing.T) {
	a, err := New(Config{Name: "test_isolated_a"})
	require.NoError(t, err)
	defer a.Close()
	b, err := New(Config{Name: "test_isolated_b"})
	require.NoError(t, err)
	defer b.Close()

	_, err = a.Conn().Exec(`CREATE TABLE only_in_a (id INTEGER)`)
	require.NoError(t, err)

	var n int
	require.NoError(t, b.Conn().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='only_in_a'`).Scan(&n))
	assert.Zero(t, n)
}

func TestBuildConnectionString(t *testing.T) {
	s := buildConnectionString("cache")
	assert.Contains(t, s, "file:cache?mode=memory&cache=shared")
	assert.Contains(t, s, "_pragma=temp_store(MEMORY)")
}
