package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/typerace/go/internal/race"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	NATS struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Channel   string `yaml:"channel"`
	} `yaml:"nats"`
	Race struct {
		RoundDuration    string `yaml:"round_duration"`
		ThrottleInterval string `yaml:"throttle_interval"`
	} `yaml:"race"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func (c *Config) roundDuration() time.Duration {
	if d, err := time.ParseDuration(c.Race.RoundDuration); err == nil && d > 0 {
		return d
	}
	return time.Minute
}

func (c *Config) throttleInterval() time.Duration {
	if d, err := time.ParseDuration(c.Race.ThrottleInterval); err == nil && d > 0 {
		return d
	}
	return race.DefaultThrottleInterval
}
