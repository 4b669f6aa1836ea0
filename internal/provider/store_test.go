package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingStore_LoadedLifecycle(t *testing.T) {
	s := NewSettingStore()
	assert.False(t, s.Loaded())

	s.MarkLoaded()
	assert.True(t, s.Loaded())
}

func TestSettingStore_Mapped_CaseInsensitiveLookup(t *testing.T) {
	s := NewSettingStore()
	s.SetMapped(Setting{Key: "Database:Host", Value: "db.internal"})

	got, ok := s.Mapped("database:host")
	require.True(t, ok)
	assert.Equal(t, "Database:Host", got.Key) // server casing preserved
	assert.Equal(t, "db.internal", got.Value)

	s.DeleteMapped("DATABASE:HOST")
	_, ok = s.Mapped("Database:Host")
	assert.False(t, ok)
}

func TestSettingStore_Watched_IdentityByKeyLabel(t *testing.T) {
	s := NewSettingStore()
	id := NewKeyLabelID("feature:x", strPtr("prod"))

	s.SetWatched(id, Setting{Key: "feature:x", Label: "prod", Value: "true", ETag: "e1"})

	got, ok := s.Watched(id)
	require.True(t, ok)
	assert.Equal(t, "e1", got.ETag)

	s.DeleteWatched(id)
	_, ok = s.Watched(id)
	assert.False(t, ok)
}

func TestSettingStore_WatchedSubset_MatchesPrefixAndLabel(t *testing.T) {
	s := NewSettingStore()
	s.SetWatched(NewKeyLabelID("feature:a", nil), Setting{Key: "feature:a", Value: "1"})
	s.SetWatched(NewKeyLabelID("feature:b", nil), Setting{Key: "feature:b", Value: "2"})
	s.SetWatched(NewKeyLabelID("other:c", nil), Setting{Key: "other:c", Value: "3"})
	s.SetWatched(NewKeyLabelID("feature:d", strPtr("staging")), Setting{Key: "feature:d", Label: "staging", Value: "4"})

	subset := s.WatchedSubset("feature:*", "")
	assert.Len(t, subset, 2)
	assert.Contains(t, subset, "feature:a")
	assert.Contains(t, subset, "feature:b")
}

func TestMatchesPattern(t *testing.T) {
	assert.True(t, matchesPattern("feature:a", "feature:a"))
	assert.False(t, matchesPattern("feature:ab", "feature:a"))
	assert.True(t, matchesPattern("feature:ab", "feature:*"))
	assert.False(t, matchesPattern("other:ab", "feature:*"))
}

func TestSettingStore_ReplaceMappedAndWatched(t *testing.T) {
	s := NewSettingStore()
	s.SetMapped(Setting{Key: "stale", Value: "old"})
	s.SetWatched(NewKeyLabelID("stale", nil), Setting{Key: "stale", Value: "old"})

	s.ReplaceMapped([]Setting{{Key: "fresh", Value: "new"}})
	s.ReplaceWatched(map[KeyLabelID]Setting{
		NewKeyLabelID("fresh", nil): {Key: "fresh", Value: "new"},
	})

	_, ok := s.Mapped("stale")
	assert.False(t, ok)

	got, ok := s.Mapped("fresh")
	require.True(t, ok)
	assert.Equal(t, "new", got.Value)

	_, ok = s.Watched(NewKeyLabelID("stale", nil))
	assert.False(t, ok)
}

func TestSettingStore_AllMapped(t *testing.T) {
	s := NewSettingStore()
	s.SetMapped(Setting{Key: "a", Value: "1"})
	s.SetMapped(Setting{Key: "b", Value: "2"})

	all := s.AllMapped()
	assert.Len(t, all, 2)
}
