package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"goa.design/dashpanels/dashboard/tool"
	"goa.design/dashpanels/integrations/grafana"
)

// envPrefix prefixes the environment variables overriding configuration
// keys, for example DASHPANELS_GRAFANA_URL.
const envPrefix = "DASHPANELS"

type (
	config struct {
		Grafana grafanaConfig `mapstructure:"grafana"`
		Log     logConfig     `mapstructure:"log"`
		Tool    toolConfig    `mapstructure:"tool"`
	}

	grafanaConfig struct {
		URL              string            `mapstructure:"url"`
		APIKey           string            `mapstructure:"api_key"`
		Username         string            `mapstructure:"username"`
		Password         string            `mapstructure:"password"`
		OrgID            int64             `mapstructure:"org_id"`
		NumRetries       int               `mapstructure:"num_retries"`
		RetryStatusCodes []string          `mapstructure:"retry_status_codes"`
		Timeout          time.Duration     `mapstructure:"timeout"`
		Headers          map[string]string `mapstructure:"headers"`
	}

	logConfig struct {
		// Format is "json", "terminal" or empty to detect the terminal.
		Format string `mapstructure:"format"`
		Debug  bool   `mapstructure:"debug"`
	}

	toolConfig struct {
		OwnerID string `mapstructure:"owner_id"`
		// IDs selects the panel identifier allocator: "random" or "sequential".
		IDs string `mapstructure:"ids"`
	}
)

// loadConfig reads path, when set, then applies environment overrides.
func loadConfig(path string) (*config, error) {
	v := viper.New()
	v.SetDefault("grafana.url", "http://localhost:3000")
	v.SetDefault("grafana.api_key", "")
	v.SetDefault("grafana.username", "")
	v.SetDefault("grafana.password", "")
	v.SetDefault("grafana.org_id", 0)
	v.SetDefault("grafana.num_retries", 3)
	v.SetDefault("grafana.retry_status_codes", []string{"429", "5xx"})
	v.SetDefault("grafana.timeout", grafana.DefaultTimeout)
	v.SetDefault("log.format", "")
	v.SetDefault("log.debug", false)
	v.SetDefault("tool.owner_id", tool.DefaultOwnerID)
	v.SetDefault("tool.ids", "random")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *config) validate() error {
	if c.Grafana.URL == "" {
		return errors.New("grafana.url is required")
	}
	switch c.Tool.IDs {
	case "random", "sequential":
	default:
		return fmt.Errorf("tool.ids must be random or sequential, got %q", c.Tool.IDs)
	}
	switch c.Log.Format {
	case "", "json", "terminal":
	default:
		return fmt.Errorf("log.format must be json or terminal, got %q", c.Log.Format)
	}
	return nil
}

func (c *config) grafanaClientConfig() grafana.Config {
	return grafana.Config{
		URL:              c.Grafana.URL,
		APIKey:           c.Grafana.APIKey,
		Username:         c.Grafana.Username,
		Password:         c.Grafana.Password,
		OrgID:            c.Grafana.OrgID,
		NumRetries:       c.Grafana.NumRetries,
		RetryStatusCodes: c.Grafana.RetryStatusCodes,
		Timeout:          c.Grafana.Timeout,
		Headers:          c.Grafana.Headers,
	}
}
