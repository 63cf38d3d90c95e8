package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidLLMNames lists the provider names known to the stock registry.
// Used by [Validate] to warn about unrecognised provider names.
var ValidLLMNames = []string{"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.Format != "" && !cfg.Log.Format.IsValid() {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json", cfg.Log.Format))
	}

	// LLM
	if cfg.LLM.Name == "" {
		errs = append(errs, errors.New("llm.name is required"))
	} else {
		validateLLMName("llm", cfg.LLM.Name)
	}
	errs = append(errs, validateEntry("llm", cfg.LLM.ProviderEntry)...)
	for i, fb := range cfg.LLM.Fallbacks {
		prefix := fmt.Sprintf("llm.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateLLMName(prefix, fb.Name)
		errs = append(errs, validateEntry(prefix, fb)...)
	}
	if cfg.LLM.CircuitBreaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("llm.circuit_breaker.max_failures %d must not be negative", cfg.LLM.CircuitBreaker.MaxFailures))
	}
	if cfg.LLM.CircuitBreaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("llm.circuit_breaker.reset_timeout %s must not be negative", cfg.LLM.CircuitBreaker.ResetTimeout))
	}

	// Context store
	switch {
	case cfg.Context.Backend != "" && !cfg.Context.Backend.IsValid():
		errs = append(errs, fmt.Errorf("context.backend %q is invalid; valid values: dir, postgres, memory", cfg.Context.Backend))
	case cfg.Context.Backend == BackendDir && cfg.Context.Dir == "":
		errs = append(errs, errors.New("context.dir is required when context.backend is dir"))
	case cfg.Context.Backend == BackendPostgres && cfg.Context.PostgresDSN == "":
		errs = append(errs, errors.New("context.postgres_dsn is required when context.backend is postgres"))
	case cfg.Context.Backend == BackendMemory:
		slog.Warn("context.backend is memory; answers given during this run will not be persisted")
	}
	if cfg.Context.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("context.phonetic_threshold %.2f is out of range [0, 1]", cfg.Context.PhoneticThreshold))
	}

	// Routing
	if c := cfg.Routing.MinConfidence; c < 0 || c > 1 {
		errs = append(errs, fmt.Errorf("routing.min_confidence %.2f is out of range [0, 1]", c))
	}

	// Enhance
	if cfg.Enhance.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("enhance.concurrency %d must not be negative", cfg.Enhance.Concurrency))
	}
	if cfg.Enhance.Interactive && cfg.Enhance.Concurrency > 1 {
		slog.Warn("enhance.concurrency is ignored in interactive mode", "concurrency", cfg.Enhance.Concurrency)
	}
	if cfg.Enhance.AnswersFile != "" && !cfg.Enhance.Interactive {
		slog.Warn("enhance.answers_file is set but enhance.interactive is false; answers are still replayed",
			"answers_file", cfg.Enhance.AnswersFile)
	}

	return errors.Join(errs...)
}

func validateEntry(prefix string, e ProviderEntry) []error {
	var errs []error
	if e.Temperature < 0 || e.Temperature > 2 {
		errs = append(errs, fmt.Errorf("%s.temperature %.2f is out of range [0, 2]", prefix, e.Temperature))
	}
	if e.Name != "" && e.Model == "" {
		slog.Warn("no model configured; the provider default is used", "provider", prefix, "name", e.Name)
	}
	return errs
}

// validateLLMName logs a warning if name is not in [ValidLLMNames].
func validateLLMName(field, name string) {
	if slices.Contains(ValidLLMNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidLLMNames,
	)
}
