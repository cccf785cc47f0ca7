package config

import "reflect"

// ConfigDiff describes what changed between two loaded configs. Only the log
// level can be applied to a running process; everything else requires a
// restart, and the diff lets the caller say so precisely.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ProviderChanged is true when the provider name, model, credentials,
	// endpoint, options, or fallback chain differ.
	ProviderChanged bool

	// StoreChanged is true when the store backend selection differs.
	StoreChanged bool

	// SearchChanged is true when the search client settings differ.
	SearchChanged bool

	// ChatChanged is true when any turn-loop tuning value differs.
	ChatChanged bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.ProviderChanged || d.StoreChanged || d.SearchChanged || d.ChatChanged
}

// RequiresRestart reports whether any changed setting cannot be hot-applied.
func (d ConfigDiff) RequiresRestart() bool {
	return d.ProviderChanged || d.StoreChanged || d.SearchChanged || d.ChatChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Options may hold nested maps, so the entry is compared structurally.
	d.ProviderChanged = !reflect.DeepEqual(old.Provider, new.Provider)
	d.StoreChanged = old.Store != new.Store
	d.SearchChanged = old.Search != new.Search
	d.ChatChanged = old.Chat != new.Chat

	return d
}
