package config

// ChangeSet describes what changed between two configs and how each change
// can be applied.
type ChangeSet struct {
	// LogLevelChanged is true when the log level differs. Log level changes
	// apply immediately.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// EngineChanged is true when any engine tuning field differs. Engine
	// changes are deferred until the next session start; an active session
	// keeps running with the values it started with.
	EngineChanged bool

	// RetrievalChanged is true when retrieval tuning differs. Applies on
	// the next question.
	RetrievalChanged bool

	// AnswerChanged is true when answer tuning differs. Applies on the
	// next question.
	AnswerChanged bool

	// ProvidersChanged is true when any provider selection differs.
	// Provider changes require a restart.
	ProvidersChanged bool
}

// Any reports whether the change set contains at least one change.
func (c ChangeSet) Any() bool {
	return c.LogLevelChanged || c.EngineChanged || c.RetrievalChanged || c.AnswerChanged || c.ProvidersChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ChangeSet {
	var c ChangeSet

	if old.Server.LogLevel != new.Server.LogLevel {
		c.LogLevelChanged = true
		c.NewLogLevel = new.Server.LogLevel
	}
	if old.Engine != new.Engine {
		c.EngineChanged = true
	}
	if old.Retrieval != new.Retrieval {
		c.RetrievalChanged = true
	}
	if old.Answer != new.Answer {
		c.AnswerChanged = true
	}
	if providerChanged(old.Providers.STT, new.Providers.STT) ||
		providerChanged(old.Providers.Embeddings, new.Providers.Embeddings) ||
		providerChanged(old.Providers.TextGen, new.Providers.TextGen) ||
		providerChanged(old.Providers.Audio, new.Providers.Audio) {
		c.ProvidersChanged = true
	}

	return c
}

// providerChanged compares the standard provider fields. Options maps are
// ignored; they are only read at provider construction time.
func providerChanged(old, new ProviderEntry) bool {
	return old.Name != new.Name ||
		old.APIKey != new.APIKey ||
		old.BaseURL != new.BaseURL ||
		old.Model != new.Model
}
