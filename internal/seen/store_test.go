package seen

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "tokenwatch/pkg/logx"
)

func openFileStore(t *testing.T, path string) *Store {
	t.Helper()
	st, err := Open(context.Background(), Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	st := openFileStore(t, filepath.Join(t.TempDir(), "found_tokens.json"))
	assert.Equal(t, 0, st.Len())
	assert.False(t, st.Has("anything"))
}

func TestFileStore_RecordSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "found_tokens.json")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	st := openFileStore(t, path)
	require.NoError(t, st.RecordAndPersist(context.Background(), Entry{
		Identity: "Mint1", Symbol: "REBA", Name: "Reba Token", FirstSeenAt: at,
	}))
	assert.True(t, st.Has("Mint1"))
	require.NoError(t, st.Close())

	again := openFileStore(t, path)
	require.True(t, again.Has("Mint1"))
	got := again.Snapshot()["Mint1"]
	assert.Equal(t, "REBA", got.Symbol)
	assert.Equal(t, "Reba Token", got.Name)
	assert.True(t, at.Equal(got.FirstSeenAt))
}

func TestFileStore_OnDiskFormatIsKeyedByIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "found_tokens.json")
	st := openFileStore(t, path)
	require.NoError(t, st.RecordAndPersist(context.Background(), Entry{Identity: "Mint1", Symbol: "REBA"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var disk map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &disk))
	require.Contains(t, disk, "Mint1")
	assert.Equal(t, "REBA", disk["Mint1"]["symbol"])
	assert.NotEmpty(t, disk["Mint1"]["first_seen_at"])

	leftovers, err := filepath.Glob(path + ".tmp-*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStore_ReadsLegacyTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "found_tokens.json")
	legacy := `{"Old1":{"symbol":"REBA","name":"Unknown","timestamp":1700000000000}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	st := openFileStore(t, path)
	require.True(t, st.Has("Old1"))
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), st.Snapshot()["Old1"].FirstSeenAt)
}

func TestFileStore_CorruptStateAbortsOpen(t *testing.T) {
	for name, body := range map[string]string{
		"garbage":   "not json at all",
		"truncated": `{"Mint1":{"symbol":"RE`,
		"array":     `["Mint1"]`,
		"empty":     "",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "found_tokens.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			_, err := Open(context.Background(), Config{Path: path}, logx.Nop())
			var cse *CorruptStateError
			require.ErrorAs(t, err, &cse)
			assert.Equal(t, path, cse.Source)
		})
	}
}

func TestStore_RecordTwiceKeepsOriginal(t *testing.T) {
	st := openFileStore(t, filepath.Join(t.TempDir(), "s.json"))
	ctx := context.Background()
	require.NoError(t, st.RecordAndPersist(ctx, Entry{Identity: "Mint1", Symbol: "FIRST"}))

	err := st.RecordAndPersist(ctx, Entry{Identity: "Mint1", Symbol: "SECOND"})
	require.ErrorIs(t, err, ErrAlreadyRecorded)
	assert.Equal(t, "FIRST", st.Snapshot()["Mint1"].Symbol)
	assert.Equal(t, 1, st.Len())
}

func TestStore_EmptyIdentityRejected(t *testing.T) {
	st := openFileStore(t, filepath.Join(t.TempDir(), "s.json"))
	require.Error(t, st.RecordAndPersist(context.Background(), Entry{Identity: "  "}))
	assert.Equal(t, 0, st.Len())
}

func TestStore_WriteFailureRollsBack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	path := filepath.Join(dir, "found_tokens.json")
	st := openFileStore(t, path)
	ctx := context.Background()
	require.NoError(t, st.RecordAndPersist(ctx, Entry{Identity: "Mint1"}))

	// Replace the state directory with a plain file so the temp file cannot be created.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))

	err := st.RecordAndPersist(ctx, Entry{Identity: "Mint2"})
	var pwe *PersistenceWriteError
	require.ErrorAs(t, err, &pwe)
	assert.Equal(t, "Mint2", pwe.Identity)
	assert.False(t, st.Has("Mint2"))
	assert.True(t, st.Has("Mint1"))
	assert.Equal(t, 1, st.Len())
}

func TestStore_ClosedRejectsWrites(t *testing.T) {
	st := openFileStore(t, filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, st.Close())
	require.ErrorIs(t, st.RecordAndPersist(context.Background(), Entry{Identity: "Mint1"}), ErrClosed)
	require.NoError(t, st.Close())
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	st := openFileStore(t, filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, st.RecordAndPersist(context.Background(), Entry{Identity: "Mint1"}))
	snap := st.Snapshot()
	delete(snap, "Mint1")
	assert.True(t, st.Has("Mint1"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"}, logx.Nop())
	require.Error(t, err)
	var cse *CorruptStateError
	assert.False(t, errors.As(err, &cse))
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.db")
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	st, err := Open(ctx, Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	require.Equal(t, "sqlite:"+path, st.Backend())
	require.NoError(t, st.RecordAndPersist(ctx, Entry{Identity: "Mint1", Symbol: "REBA", Name: "Reba", FirstSeenAt: at}))
	require.NoError(t, st.Close())

	again, err := Open(ctx, Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer again.Close()
	require.True(t, again.Has("Mint1"))
	got := again.Snapshot()["Mint1"]
	assert.Equal(t, "REBA", got.Symbol)
	assert.True(t, at.Equal(got.FirstSeenAt))
}

func TestSQLiteStore_SynchronousIsFull(t *testing.T) {
	st, err := Open(context.Background(), Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "seen.db")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	be, ok := st.be.(*sqliteBackend)
	require.True(t, ok)
	var mode int
	require.NoError(t, be.db.QueryRow("PRAGMA synchronous").Scan(&mode))
	assert.Equal(t, 2, mode, "2 is FULL")
}

func TestSQLiteStore_OpenFailsWhenSynchronousCannotBeSet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "seen.db")}, logx.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "set synchronous")
}

func TestSQLiteStore_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.db")
	require.NoError(t, os.WriteFile(path, []byte("this is definitely not an sqlite database file, just text padding it out"), 0o644))

	_, err := Open(context.Background(), Config{Driver: "sqlite", Path: path}, logx.Nop())
	var cse *CorruptStateError
	require.ErrorAs(t, err, &cse)
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "sqlite"}, logx.Nop())
	require.Error(t, err)
}
