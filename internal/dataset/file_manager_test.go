package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikimedia/research-similar-users/internal/models"
	"github.com/wikimedia/research-similar-users/internal/testutil"
)

func newFileManager(t *testing.T) (*FileManager, *models.UserStore) {
	compressor, err := NewZstdCompressor()
	require.NoError(t, err)
	store := models.NewUserStore()
	return NewFileManager(compressor, store, &testutil.MockLogger{}), store
}

func seedStore(store *models.UserStore) {
	last, _ := time.Parse(models.TimeFormat, "2020-09-30T23:59:59Z")
	st := store.GetOrCreate("Alice", false)
	st.Meta.NumEdits = 100
	st.Meta.NumPages = 20
	st.Meta.MostRecentEdit = &last
	st.Neighbors = []models.CoeditEntry{{Neighbor: "Bob", Overlap: 10}}
	st.Temporal.Record(0, 12, 5, []int{-1, 0, 1})
}

func TestFileManager_SaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")

	fm, store := newFileManager(t)
	seedStore(store)
	require.NoError(t, fm.SaveToFile(path))

	fm2, store2 := newFileManager(t)
	restored, err := fm2.LoadFromFile(path)
	require.NoError(t, err)
	assert.True(t, restored)

	assert.Equal(t, 1, store2.Len())
	meta, ok := store2.ReadMeta("Alice")
	require.True(t, ok)
	assert.Equal(t, 100, meta.NumEdits)
	require.NotNil(t, meta.MostRecentEdit)
	assert.True(t, meta.MostRecentEdit.Equal(*mustMeta(t, store).MostRecentEdit))

	st, ok := store2.Get("Alice")
	require.True(t, ok)
	assert.Equal(t, []models.CoeditEntry{{Neighbor: "Bob", Overlap: 10}}, st.Neighbors)

	tp, ok := store2.ReadTemporal("Alice")
	require.True(t, ok)
	assert.Equal(t, 5, tp.Hours[12])
}

func mustMeta(t *testing.T, store *models.UserStore) models.UserRecord {
	t.Helper()
	meta, ok := store.ReadMeta("Alice")
	require.True(t, ok)
	return meta
}

func TestFileManager_MissingFileIsNotAnError(t *testing.T) {
	fm, _ := newFileManager(t)

	restored, err := fm.LoadFromFile(filepath.Join(t.TempDir(), "nope.bin"))
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestFileManager_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o644))

	fm, _ := newFileManager(t)
	_, err := fm.LoadFromFile(path)
	require.Error(t, err)
}

func TestFileManager_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")

	compressor, err := NewZstdCompressor()
	require.NoError(t, err)
	raw, err := json.Marshal(models.Snapshot{Version: 99, Users: map[string]*models.UserPersistence{}})
	require.NoError(t, err)
	packed, err := compressor.Compress(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, packed, 0o644))

	fm, _ := newFileManager(t)
	_, err = fm.LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported snapshot version")
}

func TestFileManager_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.bin")

	fm, store := newFileManager(t)
	seedStore(store)
	require.NoError(t, fm.SaveToFile(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snapshot.bin", entries[0].Name())
}

func TestZstdCompressor_Roundtrip(t *testing.T) {
	compressor, err := NewZstdCompressor()
	require.NoError(t, err)

	payload := []byte(`{"users": {"Alice": {"num_edits": 100}}}`)
	packed, err := compressor.Compress(payload)
	require.NoError(t, err)
	assert.NotEqual(t, payload, packed)

	unpacked, err := compressor.Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, payload, unpacked)
}

func TestZstdCompressor_RejectsGarbage(t *testing.T) {
	compressor, err := NewZstdCompressor()
	require.NoError(t, err)

	_, err = compressor.Decompress([]byte("definitely not zstd"))
	require.Error(t, err)
}
