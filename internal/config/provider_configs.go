package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names understood by the LLM router, in their default fallback order.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

// DefaultProviderOrder is the fixed secondary order used when the active provider fails.
var DefaultProviderOrder = []string{ProviderGemini, ProviderOpenAI, ProviderOpenRouter, ProviderAnthropic}

// ProviderEntry describes one LLM provider the process may register at startup.
type ProviderEntry struct {
	Name          string
	Model         string
	BaseURL       string
	APIKey        string
	CredentialRef string
	Timeout       time.Duration
	Enabled       bool
}

// HasCredential reports whether the provider can be registered.
func (e ProviderEntry) HasCredential() bool {
	return strings.TrimSpace(e.APIKey) != ""
}

func (c *Config) envProviderEntries() []ProviderEntry {
	entries := []ProviderEntry{
		{Name: ProviderGemini, Model: c.GeminiModel, APIKey: c.GeminiAPIKey, CredentialRef: "GEMINI_API_KEY", Enabled: true},
		{Name: ProviderOpenAI, Model: c.OpenAIModel, BaseURL: c.OpenAIBaseURL, APIKey: c.OpenAIAPIKey, CredentialRef: "OPENAI_API_KEY", Enabled: true},
		{Name: ProviderOpenRouter, Model: c.OpenRouterModel, BaseURL: c.OpenRouterBaseURL, APIKey: c.OpenRouterAPIKey, CredentialRef: "OPENROUTER_API_KEY", Enabled: true},
		{Name: ProviderAnthropic, Model: c.AnthropicModel, APIKey: c.AnthropicAPIKey, CredentialRef: "ANTHROPIC_API_KEY", Enabled: true},
	}
	if model := strings.TrimSpace(c.DefaultModel); model != "" {
		for i := range entries {
			if entries[i].Name == c.DefaultLLMProvider {
				entries[i].Model = model
			}
		}
	}
	for i := range entries {
		entries[i].Timeout = c.ProviderTimeout
	}
	return entries
}

// ProviderEntries returns the provider table in fallback order.
func (c *Config) ProviderEntries() []ProviderEntry {
	if c == nil {
		return nil
	}
	result := make([]ProviderEntry, len(c.ProviderBootstrap))
	copy(result, c.ProviderBootstrap)
	return result
}

type providerFileDocument struct {
	Providers []providerFileEntry `yaml:"providers"`
}

type providerFileEntry struct {
	EnableRaw string `yaml:"enable"`
	Name      string `yaml:"name"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Timeout   string `yaml:"timeout"`
}

// LoadProviderFile parses a providers yaml file. Values support ${ENV} expansion; the
// order of entries becomes the fallback order.
func LoadProviderFile(path string) ([]ProviderEntry, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read provider config %q: %w", cleanPath, err)
	}

	var doc providerFileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse provider config %q: %w", cleanPath, err)
	}
	if len(doc.Providers) == 0 {
		return nil, fmt.Errorf("provider config %q has no providers defined", cleanPath)
	}

	result := make([]ProviderEntry, 0, len(doc.Providers))
	seen := make(map[string]struct{}, len(doc.Providers))
	for idx, raw := range doc.Providers {
		name := strings.ToLower(strings.TrimSpace(raw.Name))
		if !isKnownProvider(name) {
			return nil, fmt.Errorf("providers[%d]: unknown provider %q", idx, raw.Name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("providers[%d]: duplicate provider %q", idx, name)
		}
		seen[name] = struct{}{}

		enabled, err := parseEnabled(raw.EnableRaw)
		if err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", idx, err)
		}

		entry := ProviderEntry{
			Name:    name,
			Model:   strings.TrimSpace(os.ExpandEnv(raw.Model)),
			BaseURL: strings.TrimSpace(os.ExpandEnv(raw.BaseURL)),
			APIKey:  strings.TrimSpace(os.ExpandEnv(raw.APIKey)),
			Enabled: enabled,
		}
		if ref := envReference(raw.APIKey); ref != "" {
			entry.CredentialRef = ref
		}
		if raw.Timeout != "" {
			timeout, err := time.ParseDuration(raw.Timeout)
			if err != nil {
				return nil, fmt.Errorf("providers[%d]: invalid timeout: %w", idx, err)
			}
			entry.Timeout = timeout
		}
		result = append(result, entry)
	}
	return result, nil
}

// MergeProviderEntries overlays file entries onto the environment table. Entries named in the
// file come first in file order; unnamed providers keep their default relative order.
func MergeProviderEntries(base, overlay []ProviderEntry) []ProviderEntry {
	byName := make(map[string]ProviderEntry, len(base))
	for _, entry := range base {
		byName[entry.Name] = entry
	}

	result := make([]ProviderEntry, 0, len(base))
	used := make(map[string]struct{}, len(overlay))
	for _, o := range overlay {
		merged := byName[o.Name]
		merged.Name = o.Name
		merged.Enabled = o.Enabled
		if o.Model != "" {
			merged.Model = o.Model
		}
		if o.BaseURL != "" {
			merged.BaseURL = o.BaseURL
		}
		if o.APIKey != "" {
			merged.APIKey = o.APIKey
		}
		if o.CredentialRef != "" {
			merged.CredentialRef = o.CredentialRef
		}
		if o.Timeout > 0 {
			merged.Timeout = o.Timeout
		}
		result = append(result, merged)
		used[o.Name] = struct{}{}
	}
	for _, entry := range base {
		if _, ok := used[entry.Name]; !ok {
			result = append(result, entry)
		}
	}
	return result
}

func isKnownProvider(name string) bool {
	for _, known := range DefaultProviderOrder {
		if known == name {
			return true
		}
	}
	return false
}

// envReference extracts NAME from "${NAME}" or "$NAME".
func envReference(raw string) string {
	v := strings.TrimSpace(raw)
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return v[2 : len(v)-1]
	}
	if strings.HasPrefix(v, "$") && !strings.ContainsAny(v[1:], " ${}") {
		return v[1:]
	}
	return ""
}

func parseEnabled(raw string) (bool, error) {
	value := strings.TrimSpace(os.ExpandEnv(raw))
	if value == "" {
		return true, nil
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.New("enable must be a boolean")
	}
	return enabled, nil
}
