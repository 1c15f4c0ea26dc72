// Package settings reads the YAML settings file.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type MIDI struct {
	Preferred []string `yaml:"preferred,omitempty"`
	Excluded  []string `yaml:"excluded,omitempty"`
	SkipDrums bool     `yaml:"skip_drums"`
}

type Remote struct {
	Addr           string   `yaml:"addr,omitempty"` // empty disables the HTTP remote
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

type Settings struct {
	Speed      float64        `yaml:"speed"`
	Offset     time.Duration  `yaml:"offset"`
	LeadIn     time.Duration  `yaml:"lead_in"`
	PlayAlong  bool           `yaml:"play_along"`
	Loop       bool           `yaml:"loop"`
	SampleRate int            `yaml:"sample_rate"`
	Volume     float64        `yaml:"volume"`
	KeyMap     map[string]int `yaml:"key_map,omitempty"`
	MIDI       MIDI           `yaml:"midi"`
	Remote     Remote         `yaml:"remote"`
}

var (
	ErrSpeed      = errors.New("settings: speed must not be negative")
	ErrLeadIn     = errors.New("settings: lead_in must not be negative")
	ErrSampleRate = errors.New("settings: sample_rate must be positive")
	ErrKeyMap     = errors.New("settings: key_map notes must be 0-127")
)

func Default() Settings {
	return Settings{
		Speed:      1,
		LeadIn:     3 * time.Second,
		SampleRate: 48000,
		Volume:     1,
	}
}

// DefaultPath is settings.yaml in the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "keyfall", "settings.yaml"), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("settings: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("settings: parse %q: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Default(), fmt.Errorf("%q: %w", path, err)
	}
	return s, nil
}

func (s Settings) Validate() error {
	if s.Speed < 0 {
		return ErrSpeed
	}
	if s.LeadIn < 0 {
		return ErrLeadIn
	}
	if s.SampleRate <= 0 {
		return ErrSampleRate
	}
	for name, key := range s.KeyMap {
		if key < 0 || key > 127 {
			return fmt.Errorf("%w: %s=%d", ErrKeyMap, name, key)
		}
	}
	return nil
}
