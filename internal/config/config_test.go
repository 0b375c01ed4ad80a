package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledgerline.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.HTTPPort != 8080 {
		t.Fatalf("server defaults = %+v", cfg.Server)
	}
	if cfg.Assistant.Model != "gpt-4o" {
		t.Fatalf("model = %q", cfg.Assistant.Model)
	}
	if cfg.Assistant.PollInterval != time.Second || cfg.Assistant.RunTimeout != 45*time.Second {
		t.Fatalf("timing defaults = %+v", cfg.Assistant)
	}
	if cfg.Assistant.MaxToolDepth != 5 || cfg.Assistant.ToolConcurrency != 4 {
		t.Fatalf("tool defaults = %+v", cfg.Assistant)
	}
	if cfg.Limits.FreeDocumentLimit != 3 {
		t.Fatalf("free limit = %d", cfg.Limits.FreeDocumentLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test-123")
	path := writeConfig(t, `
assistant:
  api_key: ${TEST_OPENAI_KEY}
  model: gpt-4o-mini
  run_timeout: 30s
  max_tool_depth: 3
server:
  http_port: 9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Assistant.APIKey != "sk-test-123" {
		t.Fatalf("api key = %q", cfg.Assistant.APIKey)
	}
	if cfg.Assistant.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", cfg.Assistant.Model)
	}
	if cfg.Assistant.RunTimeout != 30*time.Second || cfg.Assistant.MaxToolDepth != 3 {
		t.Fatalf("assistant = %+v", cfg.Assistant)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Fatalf("port = %d", cfg.Server.HTTPPort)
	}
	// Unset fields still pick up defaults.
	if cfg.Assistant.PollInterval != time.Second {
		t.Fatalf("poll interval = %s", cfg.Assistant.PollInterval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "assistant: [this is not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	t.Run("poll interval exceeding timeout", func(t *testing.T) {
		cfg := Default()
		cfg.Assistant.PollInterval = time.Minute
		cfg.Assistant.RunTimeout = time.Second
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "poll_interval") {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "verbose"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for bad level")
		}
	})

	t.Run("bad log format", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Format = "xml"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for bad format")
		}
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := Default()
		cfg.Server.HTTPPort = 70000
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for bad port")
		}
	})
}
