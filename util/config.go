package util

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const Name = "fedsync"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

// AccountConf is one account the worker synchronizes.
type AccountConf struct {
	Origin      string `yaml:"origin"`
	Type        string `yaml:"type"`
	URL         string `yaml:"url"`
	HTMLContent bool   `yaml:"htmlContent"`
	Username    string `yaml:"username"`
	OID         string `yaml:"oid"`
	Token       string `yaml:"token"`
	Password    string `yaml:"password"`
	// Timelines lists routine names; home, notifications and mentions when empty.
	Timelines []string `yaml:"timelines"`
}

type AppConfig struct {
	Conf struct {
		Host         string
		HttpPort     int           `yaml:"httpPort"`
		WithWeb      bool          `yaml:"withWeb"`
		Database     string        `yaml:"database"`
		SyncInterval time.Duration `yaml:"syncInterval"`
		PageLimit    int           `yaml:"pageLimit"`
		// RequestsPerSecond limits outgoing requests of each account.
		RequestsPerSecond float64 `yaml:"requestsPerSecond"`
		// Notifications switches notification event types on or off.
		Notifications map[string]bool `yaml:"notifications"`
		Debug         bool            `yaml:"debug"`
	}
	Accounts []AccountConf `yaml:"accounts"`
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Infof("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			if writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0600); writeErr != nil {
				log.Warnf("Could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Infof("Created default config file at %s", userConfigPath)
			}
		}
	}

	return parseConf(c, buf)
}

// ReadConfFile reads the config at path. An empty path falls back to
// ReadConf.
func ReadConfFile(path string) (*AppConfig, error) {
	if path == "" {
		return ReadConf()
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConf(&AppConfig{}, buf)
}

func parseConf(c *AppConfig, buf []byte) (*AppConfig, error) {
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	if v := os.Getenv("FEDSYNC_HOST"); v != "" {
		c.Conf.Host = v
	}

	if v := os.Getenv("FEDSYNC_HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Warnf("Ignoring FEDSYNC_HTTPPORT: %v", err)
		} else {
			c.Conf.HttpPort = port
		}
	}

	if v := os.Getenv("FEDSYNC_WITH_WEB"); v != "" {
		c.Conf.WithWeb = v == "true"
	}

	if v := os.Getenv("FEDSYNC_DATABASE"); v != "" {
		c.Conf.Database = v
	}

	if v := os.Getenv("FEDSYNC_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Warnf("Ignoring FEDSYNC_SYNC_INTERVAL: %v", err)
		} else {
			c.Conf.SyncInterval = d
		}
	}

	if os.Getenv("FEDSYNC_DEBUG") == "true" {
		c.Conf.Debug = true
	}

	if c.Conf.Database == "" {
		c.Conf.Database = "fedsync.db"
	}
	if c.Conf.SyncInterval <= 0 {
		c.Conf.SyncInterval = 5 * time.Minute
	}
	if c.Conf.PageLimit <= 0 {
		c.Conf.PageLimit = 40
	}
	return c, nil
}

// NotificationEnabled reports whether events named name are notified. Event
// types missing from the config are enabled.
func (c *AppConfig) NotificationEnabled(name string) bool {
	enabled, ok := c.Conf.Notifications[name]
	return !ok || enabled
}
