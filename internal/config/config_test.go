package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearEnv blanks every env var this package reads so tests see only what
// they set themselves.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"TRANSPORT",
		"SES_REGION", "SES_ACCESS_KEY_ID", "SES_SECRET_ACCESS_KEY",
		"GRAPH_TENANT_ID", "GRAPH_CLIENT_ID", "GRAPH_CLIENT_SECRET",
		"STORAGE_REGION", "STORAGE_ACCESS_KEY_ID", "STORAGE_SECRET_ACCESS_KEY",
		"STORAGE_BUCKET", "STORAGE_PREFIX",
		"NOTIFY_OPERATOR", "NOTIFY_SENDER", "LOG_LEVEL",
	}
	for _, env := range envVars {
		t.Setenv(env, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Transport != "" {
		t.Errorf("Transport: got %q, want empty", cfg.Transport)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Storage.Bucket != "" {
		t.Errorf("Storage.Bucket: got %q, want empty", cfg.Storage.Bucket)
	}
	if len(cfg.Forward.Rules) != 0 {
		t.Errorf("Forward.Rules: got %d rules, want none", len(cfg.Forward.Rules))
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRANSPORT", "SES")
	t.Setenv("SES_REGION", "us-east-1")
	t.Setenv("STORAGE_BUCKET", "mail-bucket")
	t.Setenv("STORAGE_PREFIX", "inbound/")
	t.Setenv("NOTIFY_OPERATOR", "ops@yourdomain.com")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Transport != "ses" {
		t.Errorf("Transport: got %q, want %q", cfg.Transport, "ses")
	}
	if cfg.SES.Region != "us-east-1" {
		t.Errorf("SES.Region: got %q, want %q", cfg.SES.Region, "us-east-1")
	}
	if cfg.Storage.Bucket != "mail-bucket" {
		t.Errorf("Storage.Bucket: got %q, want %q", cfg.Storage.Bucket, "mail-bucket")
	}
	if cfg.Storage.Prefix != "inbound/" {
		t.Errorf("Storage.Prefix: got %q, want %q", cfg.Storage.Prefix, "inbound/")
	}
	if cfg.Notify.Operator != "ops@yourdomain.com" {
		t.Errorf("Notify.Operator: got %q, want %q", cfg.Notify.Operator, "ops@yourdomain.com")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestStorageCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("SES_ACCESS_KEY_ID", "ses-key")
	t.Setenv("SES_SECRET_ACCESS_KEY", "ses-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Without storage credentials of its own, the blob store reuses the
	// SES credentials.
	id, secret := cfg.StorageCredentials()
	if id != "ses-key" || secret != "ses-secret" {
		t.Errorf("fallback credentials: got %q/%q, want SES pair", id, secret)
	}

	t.Setenv("STORAGE_ACCESS_KEY_ID", "store-key")
	t.Setenv("STORAGE_SECRET_ACCESS_KEY", "store-secret")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, secret = cfg.StorageCredentials()
	if id != "store-key" || secret != "store-secret" {
		t.Errorf("dedicated credentials: got %q/%q, want storage pair", id, secret)
	}
}

const testYAML = `
transport: stdout
storage:
  region: eu-west-1
  bucket: mail-bucket
  prefix: inbound/
notify:
  operator: ops@yourdomain.com
  sender: forwarder@yourdomain.com
forward:
  rules:
    - match:
        host: yourdomain.com
      reject:
        local_parts: [bad]
        subject:
          - contains: lottery
      targets: [final@example.net]
    - match:
        address: info@yourdomain.com
      targets: [info-team@example.net]
  reject:
    subject:
      - pattern: '(?i)viagra'
    body:
      - contains: unsubscribe-scam
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromFile(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Transport != "stdout" {
		t.Errorf("Transport: got %q, want %q", cfg.Transport, "stdout")
	}
	if cfg.Storage.Bucket != "mail-bucket" {
		t.Errorf("Storage.Bucket: got %q, want %q", cfg.Storage.Bucket, "mail-bucket")
	}
	if len(cfg.Forward.Rules) != 2 {
		t.Fatalf("Forward.Rules: got %d, want 2", len(cfg.Forward.Rules))
	}
	if cfg.Forward.Rules[0].Match.Host != "yourdomain.com" {
		t.Errorf("rule 0 host: got %q", cfg.Forward.Rules[0].Match.Host)
	}
	if cfg.Forward.Rules[0].Reject == nil || !hasLocalPart(cfg.Forward.Rules[0].Reject.LocalParts, "bad") {
		t.Errorf("rule 0 reject local parts: got %+v", cfg.Forward.Rules[0].Reject)
	}
}

func hasLocalPart(parts []string, want string) bool {
	for _, p := range parts {
		if p == want {
			return true
		}
	}
	return false
}

func TestLoadFromFile_EnvStillOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BUCKET", "override-bucket")

	cfg, err := LoadFromFile(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Bucket != "override-bucket" {
		t.Errorf("Storage.Bucket: got %q, want env override", cfg.Storage.Bucket)
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCompile(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromFile(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rs, err := cfg.Compile()
	if err != nil {
		t.Fatalf("Compile: unexpected error: %v", err)
	}
	if rs.Len() != 2 {
		t.Errorf("rule count: got %d, want 2", rs.Len())
	}
	if len(rs.BodyReject()) != 1 {
		t.Errorf("body reject conditions: got %d, want 1", len(rs.BodyReject()))
	}

	res := rs.Resolve([]string{"ok@yourdomain.com"}, "hello")
	if len(res.Targets) != 1 || res.Targets[0] != "final@example.net" {
		t.Errorf("Resolve targets: got %v", res.Targets)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			"rule without match criterion",
			"forward:\n  rules:\n    - targets: [t@example.net]\n",
		},
		{
			"rule with two match criteria",
			"forward:\n  rules:\n    - match: {host: a.com, address: x@a.com}\n      targets: [t@example.net]\n",
		},
		{
			"rule without targets",
			"forward:\n  rules:\n    - match: {host: a.com}\n",
		},
		{
			"condition with contains and pattern",
			"forward:\n  reject:\n    body:\n      - {contains: a, pattern: b}\n",
		},
		{
			"condition with neither",
			"forward:\n  reject:\n    subject:\n      - {}\n",
		},
		{
			"bad global pattern",
			"forward:\n  reject:\n    body:\n      - pattern: '['\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := LoadFromFile(writeConfig(t, tt.yaml))
			if err != nil {
				t.Fatalf("unexpected load error: %v", err)
			}
			if _, err := cfg.Compile(); err == nil {
				t.Error("expected compile error, got nil")
			}
		})
	}
}
