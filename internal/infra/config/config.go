// Package config loads and validates the Clarion configuration file.
// The file is a single YAML document describing model connections, knowledge
// services, the intent definition, and the ordered response-rule list.
// Validation runs once at startup and reports every violation at once;
// a process with a broken configuration never starts degraded.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath points at the configuration file directly.
	EnvConfigPath = "CLARION_CONFIG"
	// EnvConfigDir points at a directory containing DefaultFileName.
	EnvConfigDir = "CLARION_CONFIG_DIR"
	// DefaultFileName is the file looked up when only a directory is known.
	DefaultFileName = "clarion.yaml"
)

// Config is the loaded configuration tree. It is read-only after Load;
// placeholder resolution always operates on copies (see Resolve).
type Config struct {
	Server      ServerConfig                `yaml:"server"`
	Logging     LoggingConfig               `yaml:"logging"`
	Audit       AuditConfig                 `yaml:"audit"`
	RateLimit   RateLimitConfig             `yaml:"rate_limit"`
	Connections map[string]Connection       `yaml:"connections"`
	Knowledge   map[string]KnowledgeService `yaml:"knowledge_services"`
	Collections []CollectionSelection       `yaml:"collections"`
	Intent      IntentConfig                `yaml:"intent"`
	Topic       TopicConfig                 `yaml:"topic"`
	Responses   []ResponseRule              `yaml:"responses"`
}

// Duration is a time.Duration that unmarshals from YAML duration strings
// ("15s", "1m30s") or from a bare integer interpreted as seconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

// AuditConfig locates the append-only audit database.
type AuditConfig struct {
	Path string `yaml:"path"` // sqlite file; ":memory:" allowed
}

// RateLimitConfig bounds inbound chat traffic.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Connection is a named LLM backend. Provider selects the adapter.
type Connection struct {
	Provider       string  `yaml:"provider"` // "openai" | "ollama"
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"` // usually a ${VAR} placeholder
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Temperature    float32 `yaml:"temperature"`
}

// KnowledgeService is a named retrieval backend with its confidence
// thresholds. A distance below MatchThreshold is a confident match; between
// MatchThreshold and PartialThreshold it is a partial match; at or above
// PartialThreshold (or when PartialThreshold is absent) it is discarded.
type KnowledgeService struct {
	BaseURL          string   `yaml:"base_url"`
	MatchThreshold   float64  `yaml:"match_threshold"`
	PartialThreshold *float64 `yaml:"partial_threshold"`
	TopK             int      `yaml:"top_k"`
	Description      string   `yaml:"description"`
}

// CollectionSelection identifies one collection of a knowledge service and,
// optionally, the embedding connection/model used to vectorize the query.
type CollectionSelection struct {
	Service             string `yaml:"service" json:"service"`
	Name                string `yaml:"name" json:"name"`
	EmbeddingConnection string `yaml:"embedding_connection" json:"embedding_connection,omitempty"`
	EmbeddingModel      string `yaml:"embedding_model" json:"embedding_model,omitempty"`
}

// IntentConfig defines the intent classifier: which connection runs it and
// the named categories (name → human description) it chooses between.
type IntentConfig struct {
	Connection string            `yaml:"connection"`
	Categories map[string]string `yaml:"categories"`
}

// TopicConfig selects the connection used by the topic tracker.
type TopicConfig struct {
	Connection string `yaml:"connection"`
}

// ResponseRule is one entry of the ordered rule list. Match maps a profile
// field (optionally suffixed _contains or _regexp) to an expected value;
// an empty map always matches and marks the fallback rule.
type ResponseRule struct {
	Match         map[string]string `yaml:"match"`
	LLM           string            `yaml:"llm"`
	Model         string            `yaml:"model"`
	Prompt        string            `yaml:"prompt"`
	MaxTokens     int               `yaml:"max_tokens"`
	Temperature   float32           `yaml:"temperature"`
	Tools         bool              `yaml:"tools"`
	MaxIterations int               `yaml:"max_iterations"`
}

// HasCriteria reports whether the rule constrains the profile at all.
func (r ResponseRule) HasCriteria() bool { return len(r.Match) > 0 }

// ErrNoConnections marks an empty connections section.
var ErrNoConnections = errors.New("at least one model connection is required")

// ValidationError aggregates every configuration violation found at load.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %d violation(s): %s", len(e.Violations), strings.Join(e.Violations, "; "))
}

// Path resolves the configuration file location: explicit argument first,
// then CLARION_CONFIG, then CLARION_CONFIG_DIR/clarion.yaml, then the
// working directory.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	if d := os.Getenv(EnvConfigDir); d != "" {
		return filepath.Join(d, DefaultFileName)
	}
	return DefaultFileName
}

// Load reads and parses the configuration file at path, applies defaults,
// and validates it. Warnings are non-fatal advisories (currently only the
// missing-fallback-rule case); any violation makes the load fail.
func Load(path string) (*Config, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	cfg.applyDefaults()

	warnings, violations := cfg.validate()
	if len(violations) > 0 {
		return nil, warnings, &ValidationError{Violations: violations}
	}
	return &cfg, warnings, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		// Generation calls can take a while; the write timeout covers the
		// whole upstream round trip.
		c.Server.WriteTimeout = Duration(60 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(60 * time.Second)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Audit.Path == "" {
		c.Audit.Path = "clarion.db"
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 30
	}
	for name, ks := range c.Knowledge {
		if ks.TopK == 0 {
			ks.TopK = 5
			c.Knowledge[name] = ks
		}
	}
}

// validate returns non-fatal warnings and fatal violations. Every named
// reference (rule llm, collection embedding connection, intent/topic
// connection, collection service) must resolve to a declared entry.
func (c *Config) validate() (warnings, violations []string) {
	if len(c.Connections) == 0 {
		violations = append(violations, ErrNoConnections.Error())
	}
	if len(c.Responses) == 0 {
		violations = append(violations, "at least one response rule is required")
	}

	hasFallback := false
	for i, rule := range c.Responses {
		if rule.LLM == "" {
			violations = append(violations, fmt.Sprintf("responses[%d]: llm connection name is required", i))
		} else if _, ok := c.Connections[rule.LLM]; !ok {
			violations = append(violations, fmt.Sprintf("responses[%d]: llm connection %q is not declared", i, rule.LLM))
		}
		if rule.Prompt == "" {
			violations = append(violations, fmt.Sprintf("responses[%d]: prompt is required", i))
		}
		if !rule.HasCriteria() {
			hasFallback = true
		}
	}
	if !hasFallback && len(c.Responses) > 0 {
		warnings = append(warnings, "no fallback rule (empty match criteria) is declared; requests matching no rule will fail")
	}

	for i, sel := range c.Collections {
		if _, ok := c.Knowledge[sel.Service]; !ok {
			violations = append(violations, fmt.Sprintf("collections[%d]: knowledge service %q is not declared", i, sel.Service))
		}
		if sel.EmbeddingConnection != "" {
			if _, ok := c.Connections[sel.EmbeddingConnection]; !ok {
				violations = append(violations, fmt.Sprintf("collections[%d]: embedding connection %q is not declared", i, sel.EmbeddingConnection))
			}
		}
	}

	if c.Intent.Connection != "" {
		if _, ok := c.Connections[c.Intent.Connection]; !ok {
			violations = append(violations, fmt.Sprintf("intent: connection %q is not declared", c.Intent.Connection))
		}
	}
	if c.Topic.Connection != "" {
		if _, ok := c.Connections[c.Topic.Connection]; !ok {
			violations = append(violations, fmt.Sprintf("topic: connection %q is not declared", c.Topic.Connection))
		}
	}

	return warnings, violations
}
