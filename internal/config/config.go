// Package config provides YAML-based configuration with environment
// variable overrides, and compiles the forwarding rule table into its
// validated runtime form.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shineum/mail-forwarder-lite/internal/rules"
)

// Config holds the complete application configuration.
type Config struct {
	Transport string        `yaml:"transport"`
	SES       SESConfig     `yaml:"ses"`
	Graph     GraphConfig   `yaml:"graph"`
	Storage   StorageConfig `yaml:"storage"`
	Notify    NotifyConfig  `yaml:"notify"`
	Forward   ForwardConfig `yaml:"forward"`
	Logging   LoggingConfig `yaml:"logging"`
}

// SESConfig holds AWS SES transport configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GraphConfig holds Microsoft Graph API transport configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// StorageConfig holds the message blob store configuration. Stored
// messages are addressed as Prefix + message id within Bucket. The
// credential fields are optional; when unset, the SES credentials are
// reused for the common single-account deployment.
type StorageConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
}

// NotifyConfig holds operator notification configuration. Operator is the
// address failure reports go to; Sender is the address they come from.
type NotifyConfig struct {
	Operator string `yaml:"operator"`
	Sender   string `yaml:"sender"`
}

// ForwardConfig holds the rule table and the global reject conditions.
type ForwardConfig struct {
	Rules  []RuleConfig `yaml:"rules"`
	Reject RejectConfig `yaml:"reject"`
}

// RuleConfig is one entry of the rule table as written in YAML.
type RuleConfig struct {
	Match   MatchConfig       `yaml:"match"`
	Reject  *RuleRejectConfig `yaml:"reject,omitempty"`
	Targets []string          `yaml:"targets"`
}

// MatchConfig selects recipients for a rule. Exactly one field must be
// set: a literal address, a host (the part after "@"), or a full-string
// pattern.
type MatchConfig struct {
	Address string `yaml:"address,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`
}

// RuleRejectConfig holds a rule's optional reject criteria. Bypass skips
// every reject check for this rule, global ones included.
type RuleRejectConfig struct {
	LocalParts []string          `yaml:"local_parts,omitempty"`
	Pattern    string            `yaml:"pattern,omitempty"`
	Subject    []ConditionConfig `yaml:"subject,omitempty"`
	Bypass     bool              `yaml:"bypass,omitempty"`
}

// ConditionConfig is a single text condition: either a literal substring
// (contains) or a regular expression (pattern), never both.
type ConditionConfig struct {
	Contains string `yaml:"contains,omitempty"`
	Pattern  string `yaml:"pattern,omitempty"`
}

// RejectConfig holds global reject conditions applied after any per-rule
// checks.
type RejectConfig struct {
	Subject []ConditionConfig `yaml:"subject,omitempty"`
	Body    []ConditionConfig `yaml:"body,omitempty"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible
// defaults. Environment variables always take precedence. The rule table
// can only come from a file.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// SESConfigured returns true if the SES transport has a region to run in.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != ""
}

// StorageCredentials returns the static credentials for the blob store,
// falling back to the SES credentials when storage has none of its own.
func (c *Config) StorageCredentials() (accessKeyID, secretAccessKey string) {
	if c.Storage.AccessKeyID != "" || c.Storage.SecretAccessKey != "" {
		return c.Storage.AccessKeyID, c.Storage.SecretAccessKey
	}
	return c.SES.AccessKeyID, c.SES.SecretAccessKey
}

// GraphConfigured returns true if all three Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != ""
}

// Compile validates the forward section and builds the runtime rule set.
// A rule without exactly one match criterion, without targets, or with an
// uncompilable pattern fails here, before any message is processed.
func (c *Config) Compile() (*rules.RuleSet, error) {
	compiled := make([]*rules.Rule, 0, len(c.Forward.Rules))

	for i, rc := range c.Forward.Rules {
		spec := rules.RuleSpec{
			Address: rc.Match.Address,
			Host:    rc.Match.Host,
			Pattern: rc.Match.Pattern,
			Targets: rc.Targets,
		}

		if rc.Reject != nil {
			subject, err := compileConditions(rc.Reject.Subject)
			if err != nil {
				return nil, fmt.Errorf("rule %d: reject subject: %w", i, err)
			}
			spec.RejectLocalParts = rc.Reject.LocalParts
			spec.RejectPattern = rc.Reject.Pattern
			spec.RejectSubject = subject
			spec.BypassReject = rc.Reject.Bypass
		}

		rule, err := rules.NewRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		compiled = append(compiled, rule)
	}

	subject, err := compileConditions(c.Forward.Reject.Subject)
	if err != nil {
		return nil, fmt.Errorf("global reject subject: %w", err)
	}
	body, err := compileConditions(c.Forward.Reject.Body)
	if err != nil {
		return nil, fmt.Errorf("global reject body: %w", err)
	}

	return rules.NewRuleSet(compiled, rules.GlobalReject{
		Subject: subject,
		Body:    body,
	}), nil
}

// compileConditions turns condition configs into matchers, enforcing the
// contains/pattern exclusivity.
func compileConditions(conds []ConditionConfig) ([]rules.Matcher, error) {
	if len(conds) == 0 {
		return nil, nil
	}

	matchers := make([]rules.Matcher, 0, len(conds))
	for i, cond := range conds {
		switch {
		case cond.Contains != "" && cond.Pattern != "":
			return nil, fmt.Errorf("condition %d: contains and pattern are mutually exclusive", i)
		case cond.Contains != "":
			matchers = append(matchers, rules.Literal(cond.Contains))
		case cond.Pattern != "":
			m, err := rules.Pattern(cond.Pattern)
			if err != nil {
				return nil, fmt.Errorf("condition %d: %w", i, err)
			}
			matchers = append(matchers, m)
		default:
			return nil, fmt.Errorf("condition %d: needs contains or pattern", i)
		}
	}
	return matchers, nil
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("TRANSPORT"); v != "" {
		c.Transport = strings.ToLower(v)
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}

	if v := os.Getenv("STORAGE_REGION"); v != "" {
		c.Storage.Region = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv("STORAGE_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretAccessKey = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_PREFIX"); v != "" {
		c.Storage.Prefix = v
	}

	if v := os.Getenv("NOTIFY_OPERATOR"); v != "" {
		c.Notify.Operator = v
	}
	if v := os.Getenv("NOTIFY_SENDER"); v != "" {
		c.Notify.Sender = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
