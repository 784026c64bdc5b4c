package config

import "testing"

func baseConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Server.LogLevel = LogInfo
	cfg.Providers.STT = ProviderEntry{Name: "whisper", BaseURL: "http://localhost:8178"}
	cfg.Providers.TextGen = ProviderEntry{Name: "ollama", Model: "llama3.1:8b"}
	return cfg
}

func TestDiffIdenticalConfigs(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()

	if c := Diff(old, new); c.Any() {
		t.Errorf("Diff of identical configs = %+v, want no changes", c)
	}
}

func TestDiffLogLevel(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = LogDebug

	c := Diff(old, new)
	if !c.LogLevelChanged || c.NewLogLevel != LogDebug {
		t.Errorf("Diff = %+v, want LogLevelChanged with debug", c)
	}
	if c.EngineChanged || c.ProvidersChanged {
		t.Errorf("unexpected extra changes: %+v", c)
	}
}

func TestDiffEngineTuning(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Engine.ChunkSeconds = 10

	c := Diff(old, new)
	if !c.EngineChanged {
		t.Errorf("Diff = %+v, want EngineChanged", c)
	}
}

func TestDiffProviderModel(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Providers.TextGen.Model = "llama3.2:3b"

	c := Diff(old, new)
	if !c.ProvidersChanged {
		t.Errorf("Diff = %+v, want ProvidersChanged", c)
	}
}

func TestDiffIgnoresProviderOptions(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Providers.STT.Options = map[string]any{"threads": 4}

	if c := Diff(old, new); c.Any() {
		t.Errorf("Diff = %+v, want no changes for options-only edit", c)
	}
}

func TestDiffRetrievalAndAnswer(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Retrieval.TopK = 5
	new.Answer.Temperature = 0.2

	c := Diff(old, new)
	if !c.RetrievalChanged || !c.AnswerChanged {
		t.Errorf("Diff = %+v, want RetrievalChanged and AnswerChanged", c)
	}
}
