package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigConstants(t *testing.T) {
	if Name != "fedsync" {
		t.Errorf("Expected Name 'fedsync', got '%s'", Name)
	}

	if ConfigFileName != "config.yaml" {
		t.Errorf("Expected ConfigFileName 'config.yaml', got '%s'", ConfigFileName)
	}
}

func TestReadConfWithYaml(t *testing.T) {
	// Create a test config file
	yamlContent := `
conf:
  host: 127.0.0.1
  httpPort: 9999
  database: test.db
  syncInterval: 90s
  notifications:
    like: false
accounts:
  - origin: social
    type: mastodon
    url: https://social.example
    username: me
    token: secret
    timelines: [home, notifications]
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.Host != "127.0.0.1" {
		t.Errorf("Expected Host '127.0.0.1', got '%s'", config.Conf.Host)
	}

	if config.Conf.HttpPort != 9999 {
		t.Errorf("Expected HttpPort 9999, got %d", config.Conf.HttpPort)
	}

	if config.Conf.Database != "test.db" {
		t.Errorf("Expected Database 'test.db', got '%s'", config.Conf.Database)
	}

	if config.Conf.SyncInterval != 90*time.Second {
		t.Errorf("Expected SyncInterval 90s, got %v", config.Conf.SyncInterval)
	}

	if config.Conf.PageLimit != 40 {
		t.Errorf("Expected default PageLimit 40, got %d", config.Conf.PageLimit)
	}

	if len(config.Accounts) != 1 {
		t.Fatalf("Expected 1 account, got %d", len(config.Accounts))
	}
	acc := config.Accounts[0]
	if acc.Type != "mastodon" || acc.URL != "https://social.example" || acc.Token != "secret" {
		t.Errorf("Unexpected account %+v", acc)
	}
	if len(acc.Timelines) != 2 {
		t.Errorf("Expected 2 timelines, got %v", acc.Timelines)
	}

	if config.NotificationEnabled("like") {
		t.Error("Expected like notifications to be disabled")
	}
	if !config.NotificationEnabled("mention") {
		t.Error("Expected unlisted event types to be enabled")
	}
}

func TestReadConfWithEnvOverrides(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  httpPort: 9999
  database: test.db
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	t.Setenv("FEDSYNC_HOST", "192.168.1.1")
	t.Setenv("FEDSYNC_HTTPPORT", "8080")
	t.Setenv("FEDSYNC_DATABASE", "env.db")
	t.Setenv("FEDSYNC_SYNC_INTERVAL", "1m")
	t.Setenv("FEDSYNC_DEBUG", "true")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	// Environment variables should override YAML values
	if config.Conf.Host != "192.168.1.1" {
		t.Errorf("Expected Host '192.168.1.1' from env, got '%s'", config.Conf.Host)
	}

	if config.Conf.HttpPort != 8080 {
		t.Errorf("Expected HttpPort 8080 from env, got %d", config.Conf.HttpPort)
	}

	if config.Conf.Database != "env.db" {
		t.Errorf("Expected Database 'env.db' from env, got '%s'", config.Conf.Database)
	}

	if config.Conf.SyncInterval != time.Minute {
		t.Errorf("Expected SyncInterval 1m from env, got %v", config.Conf.SyncInterval)
	}

	if !config.Conf.Debug {
		t.Error("Expected Debug to be true from env")
	}
}

func TestReadConfInvalidYaml(t *testing.T) {
	invalidYaml := `
conf:
  host: 127.0.0.1
  httpPort: not_a_number
  invalid yaml structure
`
	err := os.WriteFile("config.yaml", []byte(invalidYaml), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	_, err = ReadConf()
	if err == nil {
		t.Error("Expected error when parsing invalid YAML")
	}
}

func TestReadConfInvalidPortEnvKeepsYaml(t *testing.T) {
	yamlContent := `
conf:
  httpPort: 9999
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	t.Setenv("FEDSYNC_HTTPPORT", "not_a_number")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.HttpPort != 9999 {
		t.Errorf("Expected HttpPort 9999 from YAML, got %d", config.Conf.HttpPort)
	}
}

func TestEmbeddedDefaults(t *testing.T) {
	config, err := parseConf(&AppConfig{}, embeddedConfig)
	if err != nil {
		t.Fatalf("Embedded config must parse: %v", err)
	}
	if config.Conf.HttpPort != 9999 {
		t.Errorf("Expected HttpPort 9999, got %d", config.Conf.HttpPort)
	}
	if config.Conf.SyncInterval != 5*time.Minute {
		t.Errorf("Expected SyncInterval 5m, got %v", config.Conf.SyncInterval)
	}
	if len(config.Accounts) != 0 {
		t.Errorf("Expected no accounts, got %d", len(config.Accounts))
	}
	if !config.Conf.WithWeb {
		t.Error("Expected the web server to be enabled by default")
	}
}

func TestReadConfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.yaml")
	yamlContent := `
conf:
  withWeb: true
  pageLimit: 10
`
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	t.Setenv("FEDSYNC_WITH_WEB", "false")

	config, err := ReadConfFile(path)
	if err != nil {
		t.Fatalf("ReadConfFile failed: %v", err)
	}
	if config.Conf.PageLimit != 10 {
		t.Errorf("Expected PageLimit 10, got %d", config.Conf.PageLimit)
	}
	if config.Conf.WithWeb {
		t.Error("Expected FEDSYNC_WITH_WEB to disable the web server")
	}

	if _, err := ReadConfFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing config file")
	}
}
