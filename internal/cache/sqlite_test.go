package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxpilot/fieldmap/internal/mapping"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fieldmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument(formType, formVersion string) *mapping.Document {
	doc := mapping.NewDocument(formType, formVersion)
	doc.RunID = "run-" + formType + "-" + formVersion
	doc.Sections = map[string]map[string]string{
		"taxpayer": {
			"taxpayer_first_name": "topmostSubform[0].Page1[0].f1_04[0]",
			"taxpayer_ssn":        "topmostSubform[0].Page1[0].f1_06[0]",
		},
		"income": {
			"wages_line_1a": "topmostSubform[0].Page1[0].f1_32[0]",
		},
	}
	doc.Coverage = 0.95
	doc.Validated = true
	doc.GeneratedAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	doc.IterationsUsed = 3
	return doc
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	original := testDocument("f1040", "2024")
	require.NoError(t, store.Put(ctx, original))

	got, err := store.Get(ctx, "f1040", "2024")
	require.NoError(t, err)

	assert.Equal(t, original.FormType, got.FormType)
	assert.Equal(t, original.FormVersion, got.FormVersion)
	assert.Equal(t, original.RunID, got.RunID)
	assert.Equal(t, original.Sections, got.Sections)
	assert.Equal(t, original.Coverage, got.Coverage)
	assert.Equal(t, original.Validated, got.Validated)
	assert.Equal(t, original.IterationsUsed, got.IterationsUsed)
	assert.True(t, original.GeneratedAt.Equal(got.GeneratedAt))
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.Get(context.Background(), "f1040", "1999")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Regeneration replaces the cached document wholesale: nothing from the stale
// run survives the overwrite.
func TestSQLiteStorePutOverwrites(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	stale := testDocument("f1040", "2024")
	stale.Sections["leftover"] = map[string]string{"stale_name": "old_path[0]"}
	require.NoError(t, store.Put(ctx, stale))

	fresh := testDocument("f1040", "2024")
	fresh.RunID = "run-regenerated"
	fresh.Coverage = 1.0
	require.NoError(t, store.Put(ctx, fresh))

	got, err := store.Get(ctx, "f1040", "2024")
	require.NoError(t, err)
	assert.Equal(t, "run-regenerated", got.RunID)
	assert.Equal(t, 1.0, got.Coverage)
	assert.NotContains(t, got.Sections, "leftover")
}

func TestSQLiteStoreKeysAreIndependent(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testDocument("f1040", "2023")))
	require.NoError(t, store.Put(ctx, testDocument("f1040", "2024")))
	require.NoError(t, store.Put(ctx, testDocument("w9", "2024")))

	got, err := store.Get(ctx, "f1040", "2023")
	require.NoError(t, err)
	assert.Equal(t, "run-f1040-2023", got.RunID)

	docs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestSQLiteStoreListOrder(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	older := testDocument("f1040", "2023")
	older.GeneratedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testDocument("w9", "2024")
	newer.GeneratedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(ctx, older))
	require.NoError(t, store.Put(ctx, newer))

	docs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "w9", docs[0].FormType)
	assert.Equal(t, "f1040", docs[1].FormType)
}

func TestSQLiteStoreCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache", "fieldmap.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(context.Background(), testDocument("f1040", "2024")))
}
