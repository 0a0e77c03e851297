/*
 * This file is part of SA818 Bridge (https://github.com/oe5xrx/sa818-bridge-go).
 * Copyright (C) 2025 OE5XRX
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package config loads the bridge's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Bridge identity and host link
	Bridge struct {
		ID      string `yaml:"id"`
		NATSURL string `yaml:"nats_url"`
	} `yaml:"bridge"`

	// Audio backend settings
	Audio struct {
		Backend    string `yaml:"backend"` // "sim" or "portaudio"
		SampleRate int    `yaml:"sample_rate"`
		WavLog     string `yaml:"wav_log"` // TX recording path, empty disables
	} `yaml:"audio"`

	// Radio module settings
	Radio struct {
		SerialPort      string  `yaml:"serial_port"`
		TxFreqMHz       float64 `yaml:"tx_freq_mhz"`
		RxFreqMHz       float64 `yaml:"rx_freq_mhz"`
		Squelch         int     `yaml:"squelch"`
		Volume          int     `yaml:"volume"`
		HighPower       bool    `yaml:"high_power"`
		PowerOnDelayMs  int     `yaml:"power_on_delay_ms"`
		TxEnableDelayMs int     `yaml:"tx_enable_delay_ms"`
	} `yaml:"radio"`

	// Console settings
	Console struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"console"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Bridge.ID = "sa818-bridge"
	cfg.Bridge.NATSURL = "" // empty runs without a host link

	cfg.Audio.Backend = "sim"
	cfg.Audio.SampleRate = 8000
	cfg.Audio.WavLog = ""

	cfg.Radio.SerialPort = ""
	cfg.Radio.TxFreqMHz = 145.5
	cfg.Radio.RxFreqMHz = 145.5
	cfg.Radio.Squelch = 4
	cfg.Radio.Volume = 4
	cfg.Radio.HighPower = false
	cfg.Radio.PowerOnDelayMs = 100
	cfg.Radio.TxEnableDelayMs = 50

	cfg.Console.Enabled = true

	return cfg
}

// Validate rejects values the rest of the system would refuse anyway, so
// a bad file fails at startup instead of mid-session.
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case "sim", "portaudio":
	default:
		return fmt.Errorf("audio backend %q (want sim or portaudio)", c.Audio.Backend)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample rate %d", c.Audio.SampleRate)
	}
	if c.Radio.Squelch < 0 || c.Radio.Squelch > 8 {
		return fmt.Errorf("squelch %d (want 0-8)", c.Radio.Squelch)
	}
	if c.Radio.Volume < 1 || c.Radio.Volume > 8 {
		return fmt.Errorf("volume %d (want 1-8)", c.Radio.Volume)
	}
	if c.Bridge.ID == "" {
		return fmt.Errorf("bridge id must not be empty")
	}
	return nil
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations.
// Priority: explicit path > ~/.sa818-bridge.yaml > /etc/sa818-bridge/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigPath := filepath.Join(homeDir, ".sa818-bridge.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if cfg, err := Load(userConfigPath); err == nil {
				return cfg, nil
			}
		}
	}

	systemConfigPath := "/etc/sa818-bridge/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		if cfg, err := Load(systemConfigPath); err == nil {
			return cfg, nil
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}
