// Package catalog implements the model registry: a declarative,
// YAML-sourced catalog of providers and models, deduplicated by id, with
// case-insensitive provider lookups. It follows this codebase's env/file
// config-loading idiom, adapted to YAML via gopkg.in/yaml.v3.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ProviderName is the closed set of vendor adapters the dispatch core can
// select. Matching against this set is case-insensitive.
type ProviderName string

const (
	AWS        ProviderName = "AWS"
	Azure      ProviderName = "AZURE"
	OpenAI     ProviderName = "OPENAI"
	Google     ProviderName = "GOOGLE"
	OpenRouter ProviderName = "OPENROUTER"
	Together   ProviderName = "TOGETHER"
	Mock       ProviderName = "MOCK"
)

// knownProviders is the closed dispatch table. Unknown
// provider names fail with a configuration error.
var knownProviders = map[ProviderName]bool{
	AWS: true, Azure: true, OpenAI: true, Google: true,
	OpenRouter: true, Together: true, Mock: true,
}

// NormalizeProvider upper-cases and validates a provider name against the
// closed dispatch table.
func NormalizeProvider(name string) (ProviderName, error) {
	p := ProviderName(strings.ToUpper(strings.TrimSpace(name)))
	if !knownProviders[p] {
		return "", fmt.Errorf("catalog: unknown provider %q", name)
	}
	return p, nil
}

// Provider is an opaque, per-vendor configuration record, deduplicated by
// name.
type Provider struct {
	Name   ProviderName   `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}

// Capabilities are the feature flags gating what a model may be asked to
// do; translation/adapter code consults these before making a vendor call.
type Capabilities struct {
	ImageSupport     bool `yaml:"image_support" json:"image_support"`
	DocumentSupport  bool `yaml:"document_support" json:"document_support"`
	StructuredOutput bool `yaml:"structured_output" json:"structured_output"`
	Thinking         bool `yaml:"thinking" json:"thinking"`
	ReasoningEffort  bool `yaml:"reasoning_effort" json:"reasoning_effort"`
}

// Pricing holds per-million-token rates. Absent catalog keys default to 0.
type Pricing struct {
	InputPerMillion           float64 `yaml:"input_price_per_1m_tokens" json:"input_price_per_1m_tokens"`
	CachedInputPerMillion     float64 `yaml:"cached_input_price_per_1m_tokens" json:"cached_input_price_per_1m_tokens"`
	OutputPerMillion          float64 `yaml:"output_price_per_1m_tokens" json:"output_price_per_1m_tokens"`
	ReasoningOutputPerMillion float64 `yaml:"reasoning_output_price_per_1m_tokens" json:"reasoning_output_price_per_1m_tokens"`

	reasoningOutputExplicitlySet bool
}

// EffectiveReasoningOutputPerMillion returns the reasoning-output rate,
// falling back to the plain output rate when the catalog omits it.
func (p Pricing) EffectiveReasoningOutputPerMillion() float64 {
	if p.reasoningOutputExplicitlySet {
		return p.ReasoningOutputPerMillion
	}
	return p.OutputPerMillion
}

// Model is one catalog entry, identified by "provider/name". Immutable
// after load.
type Model struct {
	ID               string         `json:"id"`
	Provider         ProviderName   `json:"provider"`
	Name             string         `json:"name"`
	InternalModelID  string         `yaml:"internal_model_id" json:"internal_model_id"`
	MaxTokens        int            `yaml:"max_tokens" json:"max_tokens"`
	MaxOutputTokens  int            `yaml:"max_output_tokens" json:"max_output_tokens"`
	FixedTemperature bool           `yaml:"fixed_temperature" json:"fixed_temperature"`
	Capabilities     Capabilities   `json:"capabilities"`
	Config           map[string]any `json:"config,omitempty"`
	Price            Pricing        `json:"price"`
}

// rawCatalog mirrors the on-disk YAML shape.
type rawCatalog struct {
	Providers map[string]struct {
		Config map[string]any `yaml:"config"`
	} `yaml:"PROVIDERS"`
	Models map[string]struct {
		InternalModelID  string             `yaml:"internal_model_id"`
		MaxTokens        int                `yaml:"max_tokens"`
		MaxOutputTokens  int                `yaml:"max_output_tokens"`
		FixedTemperature bool               `yaml:"fixed_temperature"`
		Capabilities     Capabilities       `yaml:"capabilities"`
		Config           map[string]any     `yaml:"config"`
		Price            map[string]float64 `yaml:"price"`
	} `yaml:"MODELS"`
}

// Registry is the process-global, read-mostly view of known providers and
// models. Construction is idempotent; there is no hot reload.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderName]Provider
	models    map[string]Model
}

// New returns an empty registry. Use Load or LoadFile to populate it from a
// catalog file, or AddModel to build one up programmatically (as tests do).
func New() *Registry {
	return &Registry{
		providers: make(map[ProviderName]Provider),
		models:    make(map[string]Model),
	}
}

// LoadFile reads a YAML catalog file from disk and merges it into the
// registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses YAML catalog bytes into a fresh registry.
func Load(data []byte) (*Registry, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}

	reg := New()
	for name, p := range raw.Providers {
		pn, err := NormalizeProvider(name)
		if err != nil {
			return nil, err
		}
		reg.providers[pn] = Provider{Name: pn, Config: p.Config}
	}

	for id, m := range raw.Models {
		providerPart, namePart, err := splitID(id)
		if err != nil {
			return nil, err
		}
		pn, err := NormalizeProvider(providerPart)
		if err != nil {
			return nil, fmt.Errorf("catalog: model %q: %w", id, err)
		}
		if _, ok := reg.providers[pn]; !ok {
			return nil, fmt.Errorf("catalog: model %q references undeclared provider %q", id, providerPart)
		}
		price := Pricing{
			InputPerMillion:       m.Price["input_price_per_1m_tokens"],
			CachedInputPerMillion: m.Price["cached_input_price_per_1m_tokens"],
			OutputPerMillion:      m.Price["output_price_per_1m_tokens"],
		}
		if v, ok := m.Price["reasoning_output_price_per_1m_tokens"]; ok {
			price.ReasoningOutputPerMillion = v
			price.reasoningOutputExplicitlySet = true
		}
		model := Model{
			ID:               fmt.Sprintf("%s/%s", pn, namePart),
			Provider:         pn,
			Name:             namePart,
			InternalModelID:  m.InternalModelID,
			MaxTokens:        m.MaxTokens,
			MaxOutputTokens:  m.MaxOutputTokens,
			FixedTemperature: m.FixedTemperature,
			Capabilities:     m.Capabilities,
			Config:           m.Config,
			Price:            price,
		}
		reg.models[model.ID] = model
	}
	return reg, nil
}

// splitID rejects anything without exactly one "/" separating non-empty
// components.
func splitID(id string) (provider, name string, err error) {
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("catalog: invalid model id %q, want PROVIDER/name", id)
	}
	return parts[0], parts[1], nil
}

// GetModel resolves an id that is either "PROVIDER/name" (provider match
// case-insensitive, name exact) or bare "name" (a model with that name;
// when models of several providers share the name, which one is returned
// is not defined).
func (r *Registry) GetModel(id string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if strings.Contains(id, "/") {
		providerPart, namePart, err := splitID(id)
		if err != nil {
			return Model{}, err
		}
		pn, err := NormalizeProvider(providerPart)
		if err != nil {
			return Model{}, fmt.Errorf("catalog: model %q: %w", id, err)
		}
		m, ok := r.models[fmt.Sprintf("%s/%s", pn, namePart)]
		if !ok {
			return Model{}, fmt.Errorf("catalog: model not found: %s", id)
		}
		return m, nil
	}

	for _, m := range r.models {
		if m.Name == id {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("catalog: model not found: %s", id)
}

// AddModel inserts or replaces a model by id and reconciles the provider
// record.
func (r *Registry) AddModel(m Model) error {
	if _, _, err := splitID(m.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[m.Provider]; !ok {
		r.providers[m.Provider] = Provider{Name: m.Provider}
	}
	r.models[m.ID] = m
	return nil
}

// ListProviders returns the deduplicated set of known providers.
func (r *Registry) ListProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}

// ListModels returns all models, optionally filtered to one provider
// (case-insensitive).
func (r *Registry) ListModels(provider string) []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var pn ProviderName
	if provider != "" {
		pn, _ = NormalizeProvider(provider)
	}
	out := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		if provider == "" || m.Provider == pn {
			out = append(out, m)
		}
	}
	return out
}

// ModelCount returns the number of distinct model ids held by the registry.
func (r *Registry) ModelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}
