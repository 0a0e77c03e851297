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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sim", cfg.Audio.Backend)
	assert.Equal(t, 8000, cfg.Audio.SampleRate)
	assert.Equal(t, 4, cfg.Radio.Squelch)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: shack-bridge
  nats_url: nats://localhost:4222
audio:
  backend: portaudio
radio:
  tx_freq_mhz: 144.800
  rx_freq_mhz: 144.800
  volume: 6
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shack-bridge", cfg.Bridge.ID)
	assert.Equal(t, "nats://localhost:4222", cfg.Bridge.NATSURL)
	assert.Equal(t, "portaudio", cfg.Audio.Backend)
	assert.Equal(t, 144.8, cfg.Radio.TxFreqMHz)
	assert.Equal(t, 6, cfg.Radio.Volume)

	// Untouched fields keep their defaults.
	assert.Equal(t, 8000, cfg.Audio.SampleRate)
	assert.Equal(t, 4, cfg.Radio.Squelch)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad_backend", "audio:\n  backend: alsa\n"},
		{"squelch_out_of_range", "radio:\n  squelch: 9\n"},
		{"volume_out_of_range", "radio:\n  volume: 0\n"},
		{"empty_bridge_id", "bridge:\n  id: \"\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "radio: [not a map"))
	assert.Error(t, err)
}

func TestLoadWithFallbackReturnsDefaults(t *testing.T) {
	// Point HOME at an empty dir so no user config is found.
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithFallback("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadWithFallbackExplicitPath(t *testing.T) {
	path := writeConfig(t, "bridge:\n  id: explicit\n")
	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Bridge.ID)
}
