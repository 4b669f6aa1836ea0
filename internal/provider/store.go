package provider

import "strings"

// SettingStore holds the last-known mapped settings and the last-known
// watched settings used for change detection. Not
// thread-safe by itself; callers must hold the refresh single-flight gate
// while mutating it.
type SettingStore struct {
	watched map[KeyLabelID]Setting
	// mapped is addressed by the case-folded key so lookups are
	// case-insensitive, but the Setting value retains server casing.
	mapped map[string]Setting
	// loaded is true once the first successful initial load has
	// populated mapped. Distinguishes "empty because nothing matched"
	// from "never successfully loaded".
	loaded bool
}

// NewSettingStore returns an empty, not-yet-loaded store.
func NewSettingStore() *SettingStore {
	return &SettingStore{
		watched: make(map[KeyLabelID]Setting),
		mapped:  make(map[string]Setting),
	}
}

// Loaded reports whether mapped has ever been populated by a successful
// load.
func (s *SettingStore) Loaded() bool {
	return s.loaded
}

// MarkLoaded records that a successful load has populated mapped at least
// once.
func (s *SettingStore) MarkLoaded() {
	s.loaded = true
}

// Watched returns the known Setting for id and whether it exists.
func (s *SettingStore) Watched(id KeyLabelID) (Setting, bool) {
	v, ok := s.watched[id]

	return v, ok
}

// SetWatched records/overwrites the known Setting for id.
func (s *SettingStore) SetWatched(id KeyLabelID, setting Setting) {
	s.watched[id] = setting
}

// DeleteWatched removes id from the watched map, recording that the
// last observation for this identity was NotFound.
func (s *SettingStore) DeleteWatched(id KeyLabelID) {
	delete(s.watched, id)
}

// WatchedSubset returns the keys currently in watched whose KeyLabelID.Key
// matches pattern (an exact key or "prefix*" glob) and whose Label equals
// label, for the change-collection algorithm used during a refresh cycle.
func (s *SettingStore) WatchedSubset(pattern, label string) map[string]Setting {
	out := make(map[string]Setting)

	for id, setting := range s.watched {
		if id.Label != label {
			continue
		}

		if matchesPattern(id.Key, pattern) {
			out[id.Key] = setting
		}
	}

	return out
}

// matchesPattern reports whether key matches pattern, where pattern is
// either an exact key or a "prefix*" glob (suffix "*" only).
func matchesPattern(key, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}

	return key == pattern
}

// foldKey is the case-folding used to address mapped.
func foldKey(key string) string {
	return strings.ToLower(key)
}

// Mapped returns the Setting mapped under key, compared case-insensitively.
func (s *SettingStore) Mapped(key string) (Setting, bool) {
	v, ok := s.mapped[foldKey(key)]

	return v, ok
}

// SetMapped stores setting under its own Key, preserving server casing,
// addressed case-insensitively.
func (s *SettingStore) SetMapped(setting Setting) {
	s.mapped[foldKey(setting.Key)] = setting
}

// DeleteMapped removes key (compared case-insensitively) from mapped.
func (s *SettingStore) DeleteMapped(key string) {
	delete(s.mapped, foldKey(key))
}

// AllMapped returns a snapshot slice of every currently mapped Setting, in
// no particular order.
func (s *SettingStore) AllMapped() []Setting {
	out := make([]Setting, 0, len(s.mapped))
	for _, v := range s.mapped {
		out = append(out, v)
	}

	return out
}

// ReplaceMapped discards the entire mapped map and replaces it with
// settings, used for a full refreshAll reload.
func (s *SettingStore) ReplaceMapped(settings []Setting) {
	next := make(map[string]Setting, len(settings))
	for _, setting := range settings {
		next[foldKey(setting.Key)] = setting
	}

	s.mapped = next
}

// ReplaceWatched discards the entire watched map and replaces it, used
// alongside ReplaceMapped during a full refreshAll reload.
func (s *SettingStore) ReplaceWatched(settings map[KeyLabelID]Setting) {
	next := make(map[KeyLabelID]Setting, len(settings))
	for k, v := range settings {
		next[k] = v
	}

	s.watched = next
}
