package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type PersonaConfig struct {
	Name        string `toml:"name"`
	CreatorName string `toml:"creator_name"`
}

type CognitionConfig struct {
	EmbeddingDim             int     `toml:"embedding_dim"`
	AttentionFloor           float64 `toml:"attention_floor"`
	CreatorBoost             float64 `toml:"creator_boost"`
	WorkingMemoryCapacity    int     `toml:"working_memory_capacity"`
	DecayFactor              float64 `toml:"decay_factor"`
	PerModuleTimeoutMs       int     `toml:"per_module_timeout_ms"`
	PredictionErrorThreshold float64 `toml:"prediction_error_threshold"`
	RecencyHalflifeDays      float64 `toml:"recency_halflife_days"`
}

// DeadlineConfig holds per-collaborator deadlines in seconds.
type DeadlineConfig struct {
	STT    int `toml:"stt_deadline_s"`
	TTS    int `toml:"tts_deadline_s"`
	LLM    int `toml:"llm_deadline_s"`
	Embed  int `toml:"embed_deadline_s"`
	Search int `toml:"search_deadline_s"`
}

type IdleConfig struct {
	ProactiveIdleMin     int `toml:"proactive_idle_min"`
	ConsolidationIdleMin int `toml:"consolidation_idle_min"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type GraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type Config struct {
	Persona   PersonaConfig   `toml:"persona"`
	Cognition CognitionConfig `toml:"cognition"`
	Deadlines DeadlineConfig  `toml:"deadlines"`
	Idle      IdleConfig      `toml:"idle"`
	LLM       LLMConfig       `toml:"llm"`
	Graph     GraphConfig     `toml:"graph"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every tunable at its documented default.
// The creator name still has to be set by the caller.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Persona.Name == "" {
		c.Persona.Name = "Anima"
	}
	if c.Cognition.EmbeddingDim == 0 {
		c.Cognition.EmbeddingDim = 384
	}
	if c.Cognition.AttentionFloor == 0 {
		c.Cognition.AttentionFloor = 0.1
	}
	if c.Cognition.CreatorBoost == 0 {
		c.Cognition.CreatorBoost = 2.0
	}
	if c.Cognition.WorkingMemoryCapacity == 0 {
		c.Cognition.WorkingMemoryCapacity = 7
	}
	if c.Cognition.DecayFactor == 0 {
		c.Cognition.DecayFactor = 0.9
	}
	if c.Cognition.PerModuleTimeoutMs == 0 {
		c.Cognition.PerModuleTimeoutMs = 500
	}
	if c.Cognition.PredictionErrorThreshold == 0 {
		c.Cognition.PredictionErrorThreshold = 0.4
	}
	if c.Cognition.RecencyHalflifeDays == 0 {
		c.Cognition.RecencyHalflifeDays = 7
	}
	if c.Deadlines.STT == 0 {
		c.Deadlines.STT = 5
	}
	if c.Deadlines.TTS == 0 {
		c.Deadlines.TTS = 10
	}
	if c.Deadlines.LLM == 0 {
		c.Deadlines.LLM = 20
	}
	if c.Deadlines.Embed == 0 {
		c.Deadlines.Embed = 2
	}
	if c.Deadlines.Search == 0 {
		c.Deadlines.Search = 1
	}
	if c.Idle.ProactiveIdleMin == 0 {
		c.Idle.ProactiveIdleMin = 30
	}
	if c.Idle.ConsolidationIdleMin == 0 {
		c.Idle.ConsolidationIdleMin = 10
	}
	if c.Graph.URI == "" {
		c.Graph.URI = "bolt://localhost:7687"
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CREATOR_NAME"); v != "" {
		c.Persona.CreatorName = v
	}
	if v := os.Getenv("PERSONA_NAME"); v != "" {
		c.Persona.Name = v
	}
	if v := os.Getenv("GRAPH_URI"); v != "" {
		c.Graph.URI = v
	}
	if v := os.Getenv("GRAPH_USER"); v != "" {
		c.Graph.User = v
	}
	if v := os.Getenv("GRAPH_PASSWORD"); v != "" {
		c.Graph.Password = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		c.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cognition.EmbeddingDim = n
		}
	}
}

func (c *Config) validate() error {
	if c.Persona.CreatorName == "" {
		return fmt.Errorf("persona.creator_name is required")
	}
	if c.Cognition.WorkingMemoryCapacity > 9 {
		return fmt.Errorf("cognition.working_memory_capacity must not exceed 9, got %d", c.Cognition.WorkingMemoryCapacity)
	}
	if c.Cognition.AttentionFloor < 0 || c.Cognition.AttentionFloor > 1 {
		return fmt.Errorf("cognition.attention_floor must be in [0,1], got %f", c.Cognition.AttentionFloor)
	}
	if c.Cognition.DecayFactor <= 0 || c.Cognition.DecayFactor >= 1 {
		return fmt.Errorf("cognition.decay_factor must be in (0,1), got %f", c.Cognition.DecayFactor)
	}
	return nil
}
